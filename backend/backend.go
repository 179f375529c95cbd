package backend

import (
	"context"
	"net/url"
	"time"
)

// FailReason tells the backend why an authorization request is being aborted.
type FailReason string

const (
	FailDenied           FailReason = "DENIED"
	FailNotAuthenticated FailReason = "NOT_AUTHENTICATED"
	FailNotLoggedIn      FailReason = "NOT_LOGGED_IN"
	FailUnknown          FailReason = "UNKNOWN"
)

// GrantAction selects the grant management operation.
type GrantAction string

const (
	GrantQuery  GrantAction = "QUERY"
	GrantRevoke GrantAction = "REVOKE"
)

// ClientCredentials are the client authentication values extracted from a request.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

type IssueRequest struct {
	Ticket   string
	Subject  string
	AuthTime time.Time
}

type FailRequest struct {
	Ticket string
	Reason FailReason
}

type TokenRequest struct {
	Parameters  url.Values
	Credentials ClientCredentials
}

type RevocationRequest struct {
	Parameters  url.Values
	Credentials ClientCredentials
}

type PushedAuthorizationRequest struct {
	Parameters  url.Values
	Credentials ClientCredentials
}

type GrantManagementRequest struct {
	Action      GrantAction
	GrantID     string
	AccessToken string
}

type UserInfoIssueRequest struct {
	Token  string
	Claims map[string]any
}

// Backend is the decision backend contract. Every operation returns a Verdict
// for protocol outcomes, including protocol errors. A non-nil error means the
// backend could not be reached or answered with garbage; callers must treat it
// as a server fault and must not retry.
type Backend interface {
	Authorize(ctx context.Context, params url.Values) (*Verdict, error)
	Issue(ctx context.Context, req IssueRequest) (*Verdict, error)
	Fail(ctx context.Context, req FailRequest) (*Verdict, error)
	Token(ctx context.Context, req TokenRequest) (*Verdict, error)
	Introspect(ctx context.Context, params url.Values) (*Verdict, error)
	Revoke(ctx context.Context, req RevocationRequest) (*Verdict, error)
	PushAuthorizationRequest(ctx context.Context, req PushedAuthorizationRequest) (*Verdict, error)
	RegisterClient(ctx context.Context, metadata []byte) (*Verdict, error)
	GrantManagement(ctx context.Context, req GrantManagementRequest) (*Verdict, error)
	UserInfo(ctx context.Context, accessToken string) (*Verdict, error)
	UserInfoIssue(ctx context.Context, req UserInfoIssueRequest) (*Verdict, error)
	FederationConfiguration(ctx context.Context) (*Verdict, error)
	FederationRegistration(ctx context.Context, entityConfiguration string) (*Verdict, error)
	CredentialIssuerMetadata(ctx context.Context) (*Verdict, error)
	ServiceConfiguration(ctx context.Context) ([]byte, error)
	ServiceJWKS(ctx context.Context) ([]byte, error)
}
