package credentials

import (
	"crypto/sha256"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"os"
	"sync"

	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
	"github.com/rs/zerolog/log"
)

//go:embed resources/*.json
var resourceFiles embed.FS

const (
	embeddedUsers           = "resources/users.json"
	embeddedResourceServers = "resources/resource_servers.json"
)

// Store is the read-only credential lookup used by the endpoint handlers.
type Store interface {
	// Authenticate returns the user when the login id and password match.
	// Unknown login ids and wrong passwords both return ErrInvalidCredentials
	// after the same amount of hashing work.
	Authenticate(loginID, password string) (*User, error)
	GetBySubject(subject string) (*User, error)
	// AuthenticateResourceServer checks resource-server Basic credentials.
	AuthenticateResourceServer(id, secret string) (*ResourceServer, error)
}

// FileStore loads users and resource servers from JSON files on first use and
// never changes afterwards. Empty paths select the embedded demo data.
type FileStore struct {
	usersPath           string
	resourceServersPath string

	once            sync.Once
	loadErr         error
	byLogin         map[string]*User
	bySubject       map[string]*User
	resourceServers map[string]*ResourceServer
	dummyHash       string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(usersPath, resourceServersPath string) *FileStore {
	return &FileStore{
		usersPath:           usersPath,
		resourceServersPath: resourceServersPath,
	}
}

// Load forces the lazy load. It is safe to call from many goroutines.
func (s *FileStore) Load() error {
	s.once.Do(func() {
		s.loadErr = s.load()
		if s.loadErr != nil {
			log.Err(s.loadErr).Msg("credential store load failed")
		}
	})
	return s.loadErr
}

func (s *FileStore) Authenticate(loginID, password string) (*User, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}

	user, ok := s.byLogin[loginID]
	if !ok {
		// Burn the same bcrypt cost so unknown users can't be told apart by timing.
		CheckPasswordHash(password, s.dummyHash)
		return nil, errors.ErrInvalidCredentials
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}
	return copyUser(user), nil
}

func (s *FileStore) GetBySubject(subject string) (*User, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}
	user, ok := s.bySubject[subject]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s *FileStore) AuthenticateResourceServer(id, secret string) (*ResourceServer, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}
	rs, expected := s.resourceServerSecret(id)
	// Unknown ids are compared against a dummy so they cost the same as a wrong secret.
	match := secretsEqual(secret, expected)
	if rs == nil || !match {
		return nil, errors.ErrInvalidCredentials
	}
	result := *rs
	return &result, nil
}

func (s *FileStore) resourceServerSecret(id string) (*ResourceServer, string) {
	rs, ok := s.resourceServers[id]
	if !ok {
		return nil, s.dummyHash
	}
	return rs, rs.Secret
}

// secretsEqual compares digests so the comparison time does not depend on
// the length of either secret.
func secretsEqual(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

func (s *FileStore) load() error {
	var users []*User
	if err := readJSON(s.usersPath, embeddedUsers, &users); err != nil {
		return errors.Wrapf(errors.ErrStoreLoad, "users: %v", err)
	}
	var servers []*ResourceServer
	if err := readJSON(s.resourceServersPath, embeddedResourceServers, &servers); err != nil {
		return errors.Wrapf(errors.ErrStoreLoad, "resource servers: %v", err)
	}

	dummy, err := HashPassword("not-a-real-password")
	if err != nil {
		return errors.Wrapf(errors.ErrStoreLoad, "dummy hash: %v", err)
	}

	byLogin := make(map[string]*User, len(users))
	bySubject := make(map[string]*User, len(users))
	for _, u := range users {
		if u.LoginID == "" || u.Subject == "" {
			return errors.Wrapf(errors.ErrStoreLoad, "user entry missing login_id or subject")
		}
		if u.PasswordHash == "" {
			hash, err := HashPassword(u.Password)
			if err != nil {
				return errors.Wrapf(errors.ErrStoreLoad, "hashing password for %s: %v", u.LoginID, err)
			}
			u.PasswordHash = hash
		}
		u.Password = ""
		byLogin[u.LoginID] = u
		bySubject[u.Subject] = u
	}

	rsByID := make(map[string]*ResourceServer, len(servers))
	for _, rs := range servers {
		if rs.ID == "" {
			return errors.Wrapf(errors.ErrStoreLoad, "resource server entry missing id")
		}
		rsByID[rs.ID] = rs
	}

	s.byLogin = byLogin
	s.bySubject = bySubject
	s.resourceServers = rsByID
	s.dummyHash = dummy
	log.Debug().Int("users", len(byLogin)).Int("resource_servers", len(rsByID)).Msg("credential store loaded")
	return nil
}

func readJSON(path, embedded string, v any) error {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = resourceFiles.ReadFile(embedded)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func copyUser(u *User) *User {
	c := *u
	c.PasswordHash = ""
	if u.Address != nil {
		addr := *u.Address
		c.Address = &addr
	}
	return &c
}
