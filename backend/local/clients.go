package local

import (
	"crypto/subtle"
	"encoding/json"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// DefaultScopes are granted to clients that don't list their own.
var DefaultScopes = []string{
	"openid", "profile", "email", "phone", "address", "offline_access",
	"grant_management_query", "grant_management_revoke",
}

// Client is an OAuth client known to the engine.
type Client struct {
	ID           string     `json:"client_id"`
	Type         ClientType `json:"type"` // public or confidential
	Name         string     `json:"client_name,omitempty"`
	Secret       string     `json:"client_secret,omitempty"`
	RedirectURIs []string   `json:"redirect_uris"`
	Scopes       []string   `json:"scopes"` // Allowed scopes for this client
	IssuedAt     time.Time  `json:"issued_at,omitempty"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(scopes []string) error {
	for _, scope := range scopes {
		if !c.HasScope(scope) {
			return errors.Errorf("scope %q is not allowed for client %s", scope, c.ID)
		}
	}
	return nil
}

// HasRedirectURI reports an exact match against the registered redirect URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// Authenticate checks the secret of a confidential client. Public clients
// authenticate with their id alone and must not send a secret.
func (c *Client) Authenticate(secret string) bool {
	if c.IsPublic() {
		return secret == ""
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(c.Secret)) == 1
}

// DefaultClients are registered when no clients file is configured.
func DefaultClients() []*Client {
	return []*Client{
		{
			ID:     "3345476919",
			Type:   ClientTypeConfidential,
			Name:   "Demo Web Client",
			Secret: "demo-client-secret",
			RedirectURIs: []string{
				"https://oidcdebugger.com/debug",
				"http://localhost:3000/callback",
				"https://client.example.org/cb",
			},
			Scopes: DefaultScopes,
		},
		{
			ID:           "spa-client",
			Type:         ClientTypePublic,
			Name:         "Demo Single Page App",
			RedirectURIs: []string{"http://localhost:5173/callback"},
			Scopes:       DefaultScopes,
		},
	}
}

// LoadClientsFile reads a JSON array of clients.
func LoadClientsFile(path string) ([]*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read clients file")
	}
	var clients []*Client
	if err := json.Unmarshal(data, &clients); err != nil {
		return nil, errors.Wrap(err, "failed to parse clients file")
	}
	for _, c := range clients {
		if c.Type == "" {
			c.Type = ClientTypeConfidential
		}
		if len(c.Scopes) == 0 {
			c.Scopes = DefaultScopes
		}
	}
	return clients, nil
}

// clientRegistry is the engine's in-memory client table.
type clientRegistry struct {
	lock    sync.RWMutex
	clients map[string]*Client
}

func newClientRegistry(seed []*Client) *clientRegistry {
	r := &clientRegistry{clients: make(map[string]*Client, len(seed))}
	for _, c := range seed {
		r.clients[c.ID] = copyClient(c)
	}
	return r
}

func (r *clientRegistry) Get(clientID string) (*Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil, errors.Errorf("client %q not found", clientID)
	}
	return copyClient(c), nil
}

func (r *clientRegistry) Upsert(c *Client) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clients[c.ID] = copyClient(c)
}

func copyClient(c *Client) *Client {
	cc := *c
	cc.RedirectURIs = slices.Clone(c.RedirectURIs)
	cc.Scopes = slices.Clone(c.Scopes)
	return &cc
}

func splitScopes(scopes string) []string {
	return strings.Fields(scopes)
}
