package local_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/backend/local"
	"github.com/jrsteele09/go-oauth-frontend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issuer       = "https://as.example.com"
	clientID     = "3345476919"
	clientSecret = "demo-client-secret"
	redirectURI  = "https://client.example.org/cb"
	spaClientID  = "spa-client"
	spaRedirect  = "http://localhost:5173/callback"
	codeVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

var (
	sharedKeyOnce sync.Once
	sharedKey     *local.KeyPair
)

func testKeyPair(t *testing.T) *local.KeyPair {
	t.Helper()
	sharedKeyOnce.Do(func() {
		kp, err := local.GenerateRSAKeyPair("test-key", 2048)
		if err != nil {
			panic(err)
		}
		sharedKey = kp
	})
	return sharedKey
}

type testFixture struct {
	engine *local.Engine
	now    time.Time
	ctx    context.Context
	creds  backend.ClientCredentials
}

func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func setupTestFixture(t *testing.T, opts ...local.EngineOption) *testFixture {
	t.Helper()
	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	f := &testFixture{
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ctx:   context.Background(),
		creds: backend.ClientCredentials{ClientID: clientID, ClientSecret: clientSecret},
	}
	options := append([]local.EngineOption{
		local.WithNowTime(func() time.Time { return f.now }),
		local.WithKeyPair(testKeyPair(t)),
	}, opts...)
	f.engine, err = local.New(issuer, cfg, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.engine.Close() })
	return f
}

func authorizationValues(extra map[string]string) url.Values {
	v := url.Values{
		"client_id":     {clientID},
		"response_type": {"code"},
		"redirect_uri":  {redirectURI},
		"scope":         {"openid profile email"},
		"state":         {"af0ifjsldkj"},
		"nonce":         {"n-0S6_WzA2Mj"},
	}
	for k, val := range extra {
		if val == "" {
			v.Del(k)
			continue
		}
		v.Set(k, val)
	}
	return v
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func decodeBody(t *testing.T, v *backend.Verdict) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(v.ResponseContent), &body), v.ResponseContent)
	return body
}

func redirectQuery(t *testing.T, v *backend.Verdict) url.Values {
	t.Helper()
	require.Equal(t, backend.ActionLocation, v.Action, v.ResponseContent)
	u, err := url.Parse(v.ResponseContent)
	require.NoError(t, err)
	return u.Query()
}

// obtainCode runs authorize and issue, returning the authorization code.
func (f *testFixture) obtainCode(t *testing.T, extra map[string]string) string {
	t.Helper()
	v, err := f.engine.Authorize(f.ctx, authorizationValues(extra))
	require.NoError(t, err)
	require.Equal(t, backend.ActionInteraction, v.Action, v.ResponseContent)

	issued, err := f.engine.Issue(f.ctx, backend.IssueRequest{Ticket: v.Interaction.Ticket, Subject: "1001", AuthTime: f.now})
	require.NoError(t, err)
	q := redirectQuery(t, issued)
	require.NotEmpty(t, q.Get("code"))
	return q.Get("code")
}

func (f *testFixture) exchange(t *testing.T, code string, extra url.Values) *backend.Verdict {
	t.Helper()
	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	for k, vs := range extra {
		params[k] = vs
	}
	v, err := f.engine.Token(f.ctx, backend.TokenRequest{Parameters: params, Credentials: f.creds})
	require.NoError(t, err)
	return v
}

func (f *testFixture) tokens(t *testing.T, extra map[string]string) map[string]any {
	t.Helper()
	v := f.exchange(t, f.obtainCode(t, extra), nil)
	require.Equal(t, backend.ActionOK, v.Action, v.ResponseContent)
	return decodeBody(t, v)
}

func TestAuthorize(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("valid request asks for interaction", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(nil))
		require.NoError(t, err)
		require.Equal(t, backend.ActionInteraction, v.Action)
		require.NotNil(t, v.Interaction)
		assert.NotEmpty(t, v.Interaction.Ticket)
		assert.Equal(t, clientID, v.Interaction.ClientID)
		assert.Equal(t, "Demo Web Client", v.Interaction.ClientName)
		assert.Equal(t, []string{"openid", "profile", "email"}, v.Interaction.Scopes)
		assert.Equal(t, redirectURI, v.Interaction.RedirectURI)
		assert.Equal(t, "af0ifjsldkj", v.Interaction.State)
	})

	t.Run("missing client_id is a bad request", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"client_id": ""}))
		require.NoError(t, err)
		require.Equal(t, backend.ActionBadRequest, v.Action)
		assert.Equal(t, "invalid_request", decodeBody(t, v)["error"])
	})

	t.Run("unknown client is a bad request", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"client_id": "nobody"}))
		require.NoError(t, err)
		require.Equal(t, backend.ActionBadRequest, v.Action)
		assert.Equal(t, "invalid_request", decodeBody(t, v)["error"])
	})

	t.Run("unregistered redirect_uri is never redirected to", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"redirect_uri": "https://evil.example.com/cb"}))
		require.NoError(t, err)
		require.Equal(t, backend.ActionBadRequest, v.Action)
	})

	t.Run("missing response_type is a bad request", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"response_type": ""}))
		require.NoError(t, err)
		require.Equal(t, backend.ActionBadRequest, v.Action, v.ResponseContent)
		assert.Equal(t, "invalid_request", decodeBody(t, v)["error"])
	})

	t.Run("unsupported response_type is redirected", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"response_type": "token"}))
		require.NoError(t, err)
		q := redirectQuery(t, v)
		assert.Equal(t, "unsupported_response_type", q.Get("error"))
		assert.Equal(t, "af0ifjsldkj", q.Get("state"))
		assert.Equal(t, issuer, q.Get("iss"))
	})

	t.Run("scope outside the client's allowance", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"scope": "openid admin"}))
		require.NoError(t, err)
		assert.Equal(t, "invalid_scope", redirectQuery(t, v).Get("error"))
	})

	t.Run("public client requires PKCE", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{
			"client_id":    spaClientID,
			"redirect_uri": spaRedirect,
		}))
		require.NoError(t, err)
		assert.Equal(t, "invalid_request", redirectQuery(t, v).Get("error"))
	})

	t.Run("prompt none cannot interact", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"prompt": "none"}))
		require.NoError(t, err)
		require.Equal(t, backend.ActionNoInteraction, v.Action)

		failed, err := f.engine.Fail(f.ctx, backend.FailRequest{Ticket: v.Interaction.Ticket, Reason: backend.FailNotLoggedIn})
		require.NoError(t, err)
		assert.Equal(t, "login_required", redirectQuery(t, failed).Get("error"))
	})
}

func TestIssueAndFail(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("ticket is single use", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(nil))
		require.NoError(t, err)

		_, err = f.engine.Issue(f.ctx, backend.IssueRequest{Ticket: v.Interaction.Ticket, Subject: "1001"})
		require.NoError(t, err)

		again, err := f.engine.Issue(f.ctx, backend.IssueRequest{Ticket: v.Interaction.Ticket, Subject: "1001"})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionBadRequest, again.Action)
	})

	t.Run("denial redirects access_denied with state", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(nil))
		require.NoError(t, err)

		failed, err := f.engine.Fail(f.ctx, backend.FailRequest{Ticket: v.Interaction.Ticket, Reason: backend.FailDenied})
		require.NoError(t, err)
		q := redirectQuery(t, failed)
		assert.Equal(t, "access_denied", q.Get("error"))
		assert.Equal(t, "af0ifjsldkj", q.Get("state"))
		assert.Empty(t, q.Get("code"))
	})

	t.Run("fragment response mode", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"response_mode": "fragment"}))
		require.NoError(t, err)
		issued, err := f.engine.Issue(f.ctx, backend.IssueRequest{Ticket: v.Interaction.Ticket, Subject: "1001"})
		require.NoError(t, err)
		require.Equal(t, backend.ActionLocation, issued.Action)
		assert.True(t, strings.HasPrefix(issued.ResponseContent, redirectURI+"#"))
		assert.Contains(t, issued.ResponseContent, "code=")
	})

	t.Run("form_post response mode", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{"response_mode": "form_post"}))
		require.NoError(t, err)
		issued, err := f.engine.Issue(f.ctx, backend.IssueRequest{Ticket: v.Interaction.Ticket, Subject: "1001"})
		require.NoError(t, err)
		require.Equal(t, backend.ActionForm, issued.Action)
		assert.Contains(t, issued.ResponseContent, `action="`+redirectURI+`"`)
		assert.Contains(t, issued.ResponseContent, `name="code"`)
		assert.Contains(t, issued.ResponseContent, `name="state" value="af0ifjsldkj"`)
	})

	t.Run("expired ticket", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(nil))
		require.NoError(t, err)
		f.advance(time.Hour)
		issued, err := f.engine.Issue(f.ctx, backend.IssueRequest{Ticket: v.Interaction.Ticket, Subject: "1001"})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionBadRequest, issued.Action)
	})
}

func TestSweep(t *testing.T) {
	f := setupTestFixture(t, local.WithCleanupInterval(time.Hour))

	_, err := f.engine.Authorize(f.ctx, authorizationValues(nil))
	require.NoError(t, err)
	access := f.tokens(t, nil)["access_token"].(string)
	require.Equal(t, 1, f.engine.Pending())

	t.Run("live state survives a sweep", func(t *testing.T) {
		f.engine.Sweep()
		assert.Equal(t, 1, f.engine.Pending())

		v, err := f.engine.Introspect(f.ctx, url.Values{"token": {access}})
		require.NoError(t, err)
		assert.Equal(t, true, decodeBody(t, v)["active"])
	})

	t.Run("abandoned authorizations are dropped", func(t *testing.T) {
		f.advance(time.Hour)
		f.engine.Sweep()
		assert.Equal(t, 0, f.engine.Pending())

		v, err := f.engine.Introspect(f.ctx, url.Values{"token": {access}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"active": false}, decodeBody(t, v))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		require.NoError(t, f.engine.Close())
		require.NoError(t, f.engine.Close())
	})
}

func TestTokenAuthorizationCode(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("code exchange returns tokens and an id_token", func(t *testing.T) {
		body := f.tokens(t, nil)
		assert.Equal(t, "Bearer", body["token_type"])
		assert.NotEmpty(t, body["access_token"])
		assert.NotEmpty(t, body["refresh_token"])
		assert.Equal(t, "openid profile email", body["scope"])
		assert.EqualValues(t, 3600, body["expires_in"])

		idToken, ok := body["id_token"].(string)
		require.True(t, ok)
		parsed, err := jwt.Parse(idToken, func(tok *jwt.Token) (any, error) {
			return testKeyPair(t).PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return f.now }))
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, issuer, claims["iss"])
		assert.Equal(t, "1001", claims["sub"])
		assert.Equal(t, clientID, claims["aud"])
		assert.Equal(t, "n-0S6_WzA2Mj", claims["nonce"])
		assert.Equal(t, "test-key", parsed.Header["kid"])
	})

	t.Run("no id_token without openid", func(t *testing.T) {
		body := f.tokens(t, map[string]string{"scope": "profile"})
		assert.Nil(t, body["id_token"])
	})

	t.Run("code is single use", func(t *testing.T) {
		code := f.obtainCode(t, nil)
		require.Equal(t, backend.ActionOK, f.exchange(t, code, nil).Action)

		again := f.exchange(t, code, nil)
		require.Equal(t, backend.ActionBadRequest, again.Action)
		assert.Equal(t, "invalid_grant", decodeBody(t, again)["error"])
	})

	t.Run("expired code", func(t *testing.T) {
		code := f.obtainCode(t, nil)
		f.advance(11 * time.Minute)
		v := f.exchange(t, code, nil)
		require.Equal(t, backend.ActionBadRequest, v.Action)
		assert.Equal(t, "invalid_grant", decodeBody(t, v)["error"])
	})

	t.Run("redirect_uri mismatch", func(t *testing.T) {
		code := f.obtainCode(t, nil)
		v := f.exchange(t, code, url.Values{"redirect_uri": {"http://localhost:3000/callback"}})
		require.Equal(t, backend.ActionBadRequest, v.Action)
	})

	t.Run("wrong client secret", func(t *testing.T) {
		code := f.obtainCode(t, nil)
		v, err := f.engine.Token(f.ctx, backend.TokenRequest{
			Parameters:  url.Values{"grant_type": {"authorization_code"}, "code": {code}},
			Credentials: backend.ClientCredentials{ClientID: clientID, ClientSecret: "wrong"},
		})
		require.NoError(t, err)
		require.Equal(t, backend.ActionInvalidClient, v.Action)
		assert.Equal(t, "invalid_client", decodeBody(t, v)["error"])
	})

	t.Run("PKCE S256", func(t *testing.T) {
		extra := map[string]string{"code_challenge": s256(codeVerifier), "code_challenge_method": "S256"}

		code := f.obtainCode(t, extra)
		bad := f.exchange(t, code, url.Values{"code_verifier": {strings.Repeat("x", 43)}})
		require.Equal(t, backend.ActionBadRequest, bad.Action)

		code = f.obtainCode(t, extra)
		ok := f.exchange(t, code, url.Values{"code_verifier": {codeVerifier}})
		require.Equal(t, backend.ActionOK, ok.Action, ok.ResponseContent)
	})

	t.Run("public client with PKCE", func(t *testing.T) {
		v, err := f.engine.Authorize(f.ctx, authorizationValues(map[string]string{
			"client_id":             spaClientID,
			"redirect_uri":          spaRedirect,
			"code_challenge":        s256(codeVerifier),
			"code_challenge_method": "S256",
		}))
		require.NoError(t, err)
		issued, err := f.engine.Issue(f.ctx, backend.IssueRequest{Ticket: v.Interaction.Ticket, Subject: "1002"})
		require.NoError(t, err)

		tok, err := f.engine.Token(f.ctx, backend.TokenRequest{Parameters: url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {redirectQuery(t, issued).Get("code")},
			"client_id":     {spaClientID},
			"redirect_uri":  {spaRedirect},
			"code_verifier": {codeVerifier},
		}})
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, tok.Action, tok.ResponseContent)
	})
}

func TestTokenOtherGrants(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("refresh token rotates", func(t *testing.T) {
		body := f.tokens(t, nil)
		refresh := body["refresh_token"].(string)
		params := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refresh}}

		v, err := f.engine.Token(f.ctx, backend.TokenRequest{Parameters: params, Credentials: f.creds})
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, v.Action, v.ResponseContent)
		rotated := decodeBody(t, v)
		assert.NotEqual(t, refresh, rotated["refresh_token"])

		old, err := f.engine.Introspect(f.ctx, url.Values{"token": {body["access_token"].(string)}})
		require.NoError(t, err)
		assert.Equal(t, false, decodeBody(t, old)["active"])

		reuse, err := f.engine.Token(f.ctx, backend.TokenRequest{Parameters: params, Credentials: f.creds})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionBadRequest, reuse.Action)
	})

	t.Run("client credentials", func(t *testing.T) {
		v, err := f.engine.Token(f.ctx, backend.TokenRequest{
			Parameters:  url.Values{"grant_type": {"client_credentials"}, "scope": {"profile"}},
			Credentials: f.creds,
		})
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, v.Action, v.ResponseContent)
		body := decodeBody(t, v)
		assert.Nil(t, body["refresh_token"])
		assert.Nil(t, body["id_token"])
	})

	t.Run("password grant is handed back", func(t *testing.T) {
		v, err := f.engine.Token(f.ctx, backend.TokenRequest{
			Parameters:  url.Values{"grant_type": {"password"}, "username": {"john"}, "password": {"john"}},
			Credentials: f.creds,
		})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionPassword, v.Action)
	})

	t.Run("unknown grant type", func(t *testing.T) {
		v, err := f.engine.Token(f.ctx, backend.TokenRequest{
			Parameters:  url.Values{"grant_type": {"urn:example:magic"}},
			Credentials: f.creds,
		})
		require.NoError(t, err)
		require.Equal(t, backend.ActionBadRequest, v.Action)
		assert.Equal(t, "unsupported_grant_type", decodeBody(t, v)["error"])
	})
}

func TestIntrospectAndRevoke(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("missing token", func(t *testing.T) {
		v, err := f.engine.Introspect(f.ctx, url.Values{})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionBadRequest, v.Action)
	})

	t.Run("active then revoked", func(t *testing.T) {
		access := f.tokens(t, nil)["access_token"].(string)

		v, err := f.engine.Introspect(f.ctx, url.Values{"token": {access}})
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, v.Action)
		body := decodeBody(t, v)
		assert.Equal(t, true, body["active"])
		assert.Equal(t, clientID, body["client_id"])
		assert.Equal(t, "1001", body["sub"])

		revoked, err := f.engine.Revoke(f.ctx, backend.RevocationRequest{Parameters: url.Values{"token": {access}}, Credentials: f.creds})
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, revoked.Action)

		v, err = f.engine.Introspect(f.ctx, url.Values{"token": {access}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"active": false}, decodeBody(t, v))
	})

	t.Run("expired token is inactive", func(t *testing.T) {
		access := f.tokens(t, nil)["access_token"].(string)
		f.advance(2 * time.Hour)
		v, err := f.engine.Introspect(f.ctx, url.Values{"token": {access}})
		require.NoError(t, err)
		assert.Equal(t, false, decodeBody(t, v)["active"])
	})

	t.Run("revoking an unknown token succeeds", func(t *testing.T) {
		v, err := f.engine.Revoke(f.ctx, backend.RevocationRequest{Parameters: url.Values{"token": {"nope"}}, Credentials: f.creds})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionOK, v.Action)
	})

	t.Run("revocation requires client authentication", func(t *testing.T) {
		v, err := f.engine.Revoke(f.ctx, backend.RevocationRequest{
			Parameters:  url.Values{"token": {"nope"}},
			Credentials: backend.ClientCredentials{ClientID: clientID, ClientSecret: "bad"},
		})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionInvalidClient, v.Action)
	})
}

func TestPushedAuthorizationRequest(t *testing.T) {
	f := setupTestFixture(t)

	push := func(t *testing.T, creds backend.ClientCredentials) *backend.Verdict {
		t.Helper()
		v, err := f.engine.PushAuthorizationRequest(f.ctx, backend.PushedAuthorizationRequest{
			Parameters:  authorizationValues(nil),
			Credentials: creds,
		})
		require.NoError(t, err)
		return v
	}

	t.Run("request_uri replaces the parameters once", func(t *testing.T) {
		v := push(t, f.creds)
		require.Equal(t, backend.ActionCreated, v.Action, v.ResponseContent)
		body := decodeBody(t, v)
		requestURI := body["request_uri"].(string)
		assert.True(t, strings.HasPrefix(requestURI, "urn:ietf:params:oauth:request_uri:"))
		assert.EqualValues(t, 600, body["expires_in"])

		params := url.Values{"client_id": {clientID}, "request_uri": {requestURI}}
		auth, err := f.engine.Authorize(f.ctx, params)
		require.NoError(t, err)
		require.Equal(t, backend.ActionInteraction, auth.Action, auth.ResponseContent)
		assert.Equal(t, "af0ifjsldkj", auth.Interaction.State)

		again, err := f.engine.Authorize(f.ctx, params)
		require.NoError(t, err)
		assert.Equal(t, backend.ActionBadRequest, again.Action)
	})

	t.Run("bad credentials", func(t *testing.T) {
		v := push(t, backend.ClientCredentials{ClientID: clientID, ClientSecret: "bad"})
		assert.Equal(t, backend.ActionUnauthorized, v.Action)
	})
}

func TestGrantManagement(t *testing.T) {
	f := setupTestFixture(t)
	body := f.tokens(t, map[string]string{
		"scope":                   "openid grant_management_query grant_management_revoke",
		"grant_management_action": "create",
	})
	grantID, ok := body["grant_id"].(string)
	require.True(t, ok, "token response must carry grant_id")
	access := body["access_token"].(string)

	t.Run("query", func(t *testing.T) {
		v, err := f.engine.GrantManagement(f.ctx, backend.GrantManagementRequest{Action: backend.GrantQuery, GrantID: grantID, AccessToken: access})
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, v.Action, v.ResponseContent)
		assert.Contains(t, v.ResponseContent, `"scope":"grant_management_query"`)
	})

	t.Run("unknown grant", func(t *testing.T) {
		v, err := f.engine.GrantManagement(f.ctx, backend.GrantManagementRequest{Action: backend.GrantQuery, GrantID: "nope", AccessToken: access})
		require.NoError(t, err)
		assert.Equal(t, backend.ActionNotFound, v.Action)
	})

	t.Run("insufficient scope", func(t *testing.T) {
		plain := f.tokens(t, nil)["access_token"].(string)
		v, err := f.engine.GrantManagement(f.ctx, backend.GrantManagementRequest{Action: backend.GrantQuery, GrantID: grantID, AccessToken: plain})
		require.NoError(t, err)
		require.Equal(t, backend.ActionForbidden, v.Action)
		assert.Contains(t, v.Header("WWW-Authenticate"), `error="insufficient_scope"`)
	})

	t.Run("revoke then query", func(t *testing.T) {
		v, err := f.engine.GrantManagement(f.ctx, backend.GrantManagementRequest{Action: backend.GrantRevoke, GrantID: grantID, AccessToken: access})
		require.NoError(t, err)
		require.Equal(t, backend.ActionNoContent, v.Action)

		v, err = f.engine.GrantManagement(f.ctx, backend.GrantManagementRequest{Action: backend.GrantQuery, GrantID: grantID, AccessToken: access})
		require.NoError(t, err)
		assert.Contains(t, []backend.Action{backend.ActionUnauthorized, backend.ActionForbidden, backend.ActionNotFound}, v.Action)
	})
}

func TestUserInfo(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("claims follow scopes", func(t *testing.T) {
		access := f.tokens(t, map[string]string{"scope": "openid email"})["access_token"].(string)
		v, err := f.engine.UserInfo(f.ctx, access)
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, v.Action)
		require.NotNil(t, v.UserInfo)
		assert.Equal(t, "1001", v.UserInfo.Subject)
		assert.ElementsMatch(t, []string{"email", "email_verified"}, v.UserInfo.Claims)

		issued, err := f.engine.UserInfoIssue(f.ctx, backend.UserInfoIssueRequest{
			Token:  access,
			Claims: map[string]any{"email": "john@example.com", "sub": "forged"},
		})
		require.NoError(t, err)
		require.Equal(t, backend.ActionJSON, issued.Action)
		body := decodeBody(t, issued)
		assert.Equal(t, "1001", body["sub"])
		assert.Equal(t, "john@example.com", body["email"])
	})

	t.Run("missing token", func(t *testing.T) {
		v, err := f.engine.UserInfo(f.ctx, "")
		require.NoError(t, err)
		assert.Equal(t, backend.ActionBadRequest, v.Action)
	})

	t.Run("invalid token", func(t *testing.T) {
		v, err := f.engine.UserInfo(f.ctx, "garbage")
		require.NoError(t, err)
		require.Equal(t, backend.ActionUnauthorized, v.Action)
		assert.Contains(t, v.Header("WWW-Authenticate"), `Bearer error="invalid_token"`)
	})

	t.Run("token without openid", func(t *testing.T) {
		access := f.tokens(t, map[string]string{"scope": "profile"})["access_token"].(string)
		v, err := f.engine.UserInfo(f.ctx, access)
		require.NoError(t, err)
		assert.Equal(t, backend.ActionForbidden, v.Action)
	})
}

func TestRegisterClient(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("registered client can authorize", func(t *testing.T) {
		v, err := f.engine.RegisterClient(f.ctx, []byte(`{"redirect_uris":["https://rp.example.net/cb"],"client_name":"RP"}`))
		require.NoError(t, err)
		require.Equal(t, backend.ActionCreated, v.Action, v.ResponseContent)
		body := decodeBody(t, v)
		assert.NotEmpty(t, body["client_secret"])
		assert.Equal(t, "client_secret_basic", body["token_endpoint_auth_method"])

		auth, err := f.engine.Authorize(f.ctx, url.Values{
			"client_id":     {body["client_id"].(string)},
			"response_type": {"code"},
			"scope":         {"openid"},
		})
		require.NoError(t, err)
		require.Equal(t, backend.ActionInteraction, auth.Action, auth.ResponseContent)
		assert.Equal(t, "https://rp.example.net/cb", auth.Interaction.RedirectURI)
	})

	t.Run("public client", func(t *testing.T) {
		v, err := f.engine.RegisterClient(f.ctx, []byte(`{"redirect_uris":["https://rp.example.net/cb"],"token_endpoint_auth_method":"none"}`))
		require.NoError(t, err)
		require.Equal(t, backend.ActionCreated, v.Action)
		assert.Nil(t, decodeBody(t, v)["client_secret"])
	})

	t.Run("invalid metadata", func(t *testing.T) {
		for name, md := range map[string]string{
			"not json":          `{`,
			"no redirect uris":  `{"client_name":"x"}`,
			"relative redirect": `{"redirect_uris":["/cb"]}`,
			"unknown scope":     `{"redirect_uris":["https://rp.example.net/cb"],"scope":"root"}`,
		} {
			v, err := f.engine.RegisterClient(f.ctx, []byte(md))
			require.NoError(t, err)
			assert.Equal(t, backend.ActionBadRequest, v.Action, name)
		}
	})
}

func TestDiscoveryDocuments(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("configuration", func(t *testing.T) {
		data, err := f.engine.ServiceConfiguration(f.ctx)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, issuer, doc["issuer"])
		assert.Equal(t, issuer+"/api/token", doc["token_endpoint"])
		assert.Equal(t, issuer+"/api/jwks", doc["jwks_uri"])
		assert.Contains(t, doc, "response_types_supported")
		assert.Contains(t, doc, "subject_types_supported")
		assert.Contains(t, doc, "id_token_signing_alg_values_supported")
	})

	t.Run("jwks", func(t *testing.T) {
		data, err := f.engine.ServiceJWKS(f.ctx)
		require.NoError(t, err)
		var set jose.JSONWebKeySet
		require.NoError(t, json.Unmarshal(data, &set))
		require.Len(t, set.Keys, 1)
		assert.Equal(t, "test-key", set.Keys[0].KeyID)
		assert.Equal(t, "sig", set.Keys[0].Use)
		assert.True(t, set.Keys[0].IsPublic())
	})

	t.Run("credential issuer disabled", func(t *testing.T) {
		v, err := f.engine.CredentialIssuerMetadata(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, backend.ActionNotFound, v.Action)
	})

	t.Run("credential issuer enabled", func(t *testing.T) {
		vci := setupTestFixture(t, local.WithCredentialIssuerMetadata(map[string]any{
			"credential_endpoint": issuer + "/api/credential",
		}))
		v, err := vci.engine.CredentialIssuerMetadata(vci.ctx)
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, v.Action)
		assert.Equal(t, issuer, decodeBody(t, v)["credential_issuer"])
	})
}

func selfSignedEntityConfiguration(t *testing.T, claims map[string]any) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "rp-key", Algorithm: string(jose.RS256), Use: "sig"}
	claims["jwks"] = jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: key, KeyID: "rp-key"}},
		(&jose.SignerOptions{}).WithType("entity-statement+jwt"),
	)
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	compact, err := jws.CompactSerialize()
	require.NoError(t, err)
	return compact
}

func TestFederation(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("entity configuration is signed by the server key", func(t *testing.T) {
		v, err := f.engine.FederationConfiguration(f.ctx)
		require.NoError(t, err)
		require.Equal(t, backend.ActionOK, v.Action)

		parsed, err := jwt.Parse(v.ResponseContent, func(tok *jwt.Token) (any, error) {
			return testKeyPair(t).PublicKey, nil
		}, jwt.WithTimeFunc(func() time.Time { return f.now }))
		require.NoError(t, err)
		assert.Equal(t, "entity-statement+jwt", parsed.Header["typ"])
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, issuer, claims["iss"])
		assert.Equal(t, issuer, claims["sub"])
	})

	t.Run("unsigned statement is rejected", func(t *testing.T) {
		v, err := f.engine.FederationRegistration(f.ctx, "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ0ZXN0LWFnZW50In0.")
		require.NoError(t, err)
		require.Equal(t, backend.ActionBadRequest, v.Action)
		assert.NotEmpty(t, decodeBody(t, v)["error"])
	})

	t.Run("self-signed relying party registers", func(t *testing.T) {
		statement := selfSignedEntityConfiguration(t, map[string]any{
			"iss": "https://rp.example.net",
			"sub": "https://rp.example.net",
			"iat": f.now.Unix(),
			"exp": f.now.Add(time.Hour).Unix(),
			"metadata": map[string]any{
				"openid_relying_party": map[string]any{
					"redirect_uris": []string{"https://rp.example.net/cb"},
				},
			},
		})
		v, err := f.engine.FederationRegistration(f.ctx, statement)
		require.NoError(t, err)
		require.Equal(t, backend.ActionCreated, v.Action, v.ResponseContent)
		body := decodeBody(t, v)
		assert.Equal(t, "https://rp.example.net", body["client_name"])
	})

	t.Run("iss must equal sub", func(t *testing.T) {
		statement := selfSignedEntityConfiguration(t, map[string]any{
			"iss": "https://ta.example.net",
			"sub": "https://rp.example.net",
			"exp": f.now.Add(time.Hour).Unix(),
			"metadata": map[string]any{
				"openid_relying_party": map[string]any{"redirect_uris": []string{"https://rp.example.net/cb"}},
			},
		})
		v, err := f.engine.FederationRegistration(f.ctx, statement)
		require.NoError(t, err)
		assert.Equal(t, backend.ActionBadRequest, v.Action)
	})
}
