package backend

// Verdict is the decision backend's answer for one operation.
type Verdict struct {
	Action Action

	// ResponseContent is passed to the client as-is: a JSON document, a
	// redirect URI, an HTML page or a JWT depending on the action.
	ResponseContent string

	// Headers are extra response headers the backend asks for, e.g. a
	// WWW-Authenticate challenge or DPoP-Nonce.
	Headers map[string]string

	// Interaction is set for INTERACTION and NO_INTERACTION authorization verdicts.
	Interaction *Interaction

	// UserInfo is set for a successful userinfo verdict.
	UserInfo *UserInfoGrant
}

// Interaction describes a pending authorization request that needs the end-user.
type Interaction struct {
	Ticket              string
	ClientID            string
	ClientName          string
	Scopes              []string
	RedirectURI         string
	State               string
	ResponseType        string
	ResponseMode        string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	LoginHint           string
}

// UserInfoGrant tells the front end which subject a userinfo access token
// belongs to and which claims it may release.
type UserInfoGrant struct {
	Subject  string
	ClientID string
	Claims   []string
	Token    string
}

// Header returns the named extra header, or "".
func (v *Verdict) Header(name string) string {
	if v == nil || v.Headers == nil {
		return ""
	}
	return v.Headers[name]
}
