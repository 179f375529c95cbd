// Package local is an in-process decision engine implementing backend.Backend.
// It keeps all state in memory and is meant for development, demos and
// end-to-end tests of the front end.
package local

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/internal/config"
	"github.com/pkg/errors"
)

const tokenByteLength = 32 // 256 bits

// Engine is the in-memory decision engine.
type Engine struct {
	issuer  string
	config  config.EngineConfig
	clients *clientRegistry
	keys    *KeyPair
	nowTime func() time.Time

	credentialIssuerMetadata map[string]any

	lock          sync.Mutex
	pending       map[string]*pendingAuthorization // backend ticket -> request
	codes         map[string]*authorizationCode
	accessTokens  map[string]*issuedToken
	refreshTokens map[string]*issuedToken
	grants        map[string]*grant
	pushed        map[string]*pushedRequest

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	closeOnce       sync.Once
}

var _ backend.Backend = (*Engine)(nil)

type pendingAuthorization struct {
	client    *Client
	params    *AuthorizationParameters
	createdAt time.Time
}

type authorizationCode struct {
	code                string
	clientID            string
	subject             string
	redirectURI         string
	redirectURIProvided bool
	scopes              []string
	nonce               string
	codeChallenge       string
	codeChallengeMethod CodeMethodType
	grantAction         string
	grantID             string
	authTime            time.Time
	expiresAt           time.Time
}

type issuedToken struct {
	value     string
	clientID  string
	subject   string
	scopes    []string
	grantID   string
	authTime  time.Time
	issuedAt  time.Time
	expiresAt time.Time
	// refresh links an access token to the refresh token it was minted with.
	refresh string
}

func (t *issuedToken) active(now time.Time) bool {
	return t != nil && now.Before(t.expiresAt)
}

type grant struct {
	id        string
	clientID  string
	subject   string
	scopes    []string
	createdAt time.Time
}

type pushedRequest struct {
	params    *AuthorizationParameters
	clientID  string
	expiresAt time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowTime = nowFunc
	}
}

// WithCleanupInterval sets how often expired state is swept.
func WithCleanupInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.cleanupInterval = d
	}
}

// WithClients replaces the seeded client table.
func WithClients(clients []*Client) EngineOption {
	return func(e *Engine) {
		e.clients = newClientRegistry(clients)
	}
}

// WithKeyPair sets the signing key instead of generating one.
func WithKeyPair(kp *KeyPair) EngineOption {
	return func(e *Engine) {
		e.keys = kp
	}
}

// WithCredentialIssuerMetadata enables the credential issuer metadata document.
func WithCredentialIssuerMetadata(metadata map[string]any) EngineOption {
	return func(e *Engine) {
		e.credentialIssuerMetadata = metadata
	}
}

// New creates an engine issuing tokens as issuer (the server's base URL).
// It starts a goroutine sweeping expired state; call Close to stop it.
func New(issuer string, cfg config.EngineConfig, options ...EngineOption) (*Engine, error) {
	if issuer == "" {
		return nil, errors.New("[local.New] issuer is required")
	}
	if cfg == nil {
		return nil, errors.New("[local.New] engine config is required")
	}

	e := &Engine{
		issuer:        issuer,
		config:        cfg,
		nowTime:       time.Now,
		pending:       make(map[string]*pendingAuthorization),
		codes:         make(map[string]*authorizationCode),
		accessTokens:  make(map[string]*issuedToken),
		refreshTokens: make(map[string]*issuedToken),
		grants:        make(map[string]*grant),
		pushed:        make(map[string]*pushedRequest),

		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.clients == nil {
		seed := DefaultClients()
		if path := cfg.GetClientsFile(); path != "" {
			loaded, err := LoadClientsFile(path)
			if err != nil {
				return nil, errors.Wrap(err, "[local.New]")
			}
			seed = loaded
		}
		e.clients = newClientRegistry(seed)
	}

	if e.keys == nil {
		kp, err := GenerateRSAKeyPair(uuid.NewString(), 2048)
		if err != nil {
			return nil, errors.Wrap(err, "[local.New]")
		}
		e.keys = kp
	}

	go e.cleanupLoop()
	return e, nil
}

// Keys exposes the signing key pair.
func (e *Engine) Keys() *KeyPair {
	return e.keys
}

// Issuer returns the issuer identifier used in tokens.
func (e *Engine) Issuer() string {
	return e.issuer
}

func randomToken() (string, error) {
	b := make([]byte, tokenByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to generate random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func jsonVerdict(action backend.Action, body any) *backend.Verdict {
	data, err := json.Marshal(body)
	if err != nil {
		return internalErrorVerdict(err)
	}
	return &backend.Verdict{Action: action, ResponseContent: string(data)}
}

func errorVerdict(action backend.Action, code, description string) *backend.Verdict {
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	return jsonVerdict(action, body)
}

func internalErrorVerdict(err error) *backend.Verdict {
	data, _ := json.Marshal(map[string]string{
		"error":             "server_error",
		"error_description": err.Error(),
	})
	return &backend.Verdict{Action: backend.ActionInternalServerError, ResponseContent: string(data)}
}

// bearerChallenge builds a verdict whose body and WWW-Authenticate header carry the same error.
func bearerChallenge(action backend.Action, code, description, scope string) *backend.Verdict {
	v := errorVerdict(action, code, description)
	challenge := `Bearer error="` + code + `"`
	if description != "" {
		challenge += `,error_description="` + description + `"`
	}
	if scope != "" {
		challenge += `,scope="` + scope + `"`
	}
	v.Headers = map[string]string{"WWW-Authenticate": challenge}
	return v
}
