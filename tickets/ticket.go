package tickets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
)

// DefaultTTL is how long a ticket can be redeemed after it was issued.
const DefaultTTL = 10 * time.Minute

// RequestContext is the canonicalized authorization request bound to a ticket.
type RequestContext struct {
	ClientID            string `json:"client_id"`
	ClientName          string `json:"client_name,omitempty"`
	Scope               string `json:"scope,omitempty"`
	RedirectURI         string `json:"redirect_uri,omitempty"`
	State               string `json:"state,omitempty"`
	ResponseType        string `json:"response_type,omitempty"`
	ResponseMode        string `json:"response_mode,omitempty"`
	Nonce               string `json:"nonce,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	// BackendTicket is the decision backend's own correlation handle for the
	// pending request. It never leaves the server.
	BackendTicket string `json:"backend_ticket"`
}

// AuthorizationTicket is a single-use correlation token between the
// authorization endpoint and the decision endpoint.
type AuthorizationTicket struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Request   RequestContext `json:"request"`
}

// Expired reports whether the ticket can no longer be redeemed at now.
func (t *AuthorizationTicket) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Registry issues and redeems tickets.
//
// Redeem is an atomic check-and-clear: of any number of concurrent redemptions
// of the same id exactly one returns the request context with a nil error.
// ErrTicketExpired and ErrTicketUsed are returned together with the request
// context so callers can still report the failure to the client's redirect URI.
// ErrTicketNotFound returns a nil context.
type Registry interface {
	Issue(ctx context.Context, request RequestContext) (string, error)
	Redeem(ctx context.Context, id string) (*RequestContext, error)
}

// Option configures a registry.
type Option func(*options)

type options struct {
	ttl     time.Duration
	nowTime func() time.Time
	newID   func() string
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithNowTime sets the clock (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *options) {
		o.nowTime = nowFunc
	}
}

func buildOptions(opts []Option) options {
	o := options{
		ttl:     DefaultTTL,
		nowTime: time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) newTicket(request RequestContext) *AuthorizationTicket {
	now := o.nowTime()
	return &AuthorizationTicket{
		ID:        o.newID(),
		CreatedAt: now,
		ExpiresAt: now.Add(o.ttl),
		Request:   request,
	}
}

// IsTicketError reports whether err is one of the redemption failures.
func IsTicketError(err error) bool {
	return errors.Is(err, errors.ErrTicketNotFound) ||
		errors.Is(err, errors.ErrTicketExpired) ||
		errors.Is(err, errors.ErrTicketUsed)
}
