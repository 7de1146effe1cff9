// Package backend is the REST boundary of the sign-in orchestrator. All
// identity decisions live on the other side of this client; the
// orchestrator only initiates, survives, and completes the handshake.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// envelope is the uniform response shape of every backend call.
type envelope struct {
	Status string          `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
	Data2  json.RawMessage `json:"data2"`
}

// Client talks to the identity backend. The session cookie is carried in
// the jar, so a successful exchange authenticates subsequent calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, logger *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*envelope, error) {
	u := c.baseURL + "/api/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &TransportError{Op: path, Err: err}
	}
	if env.Status == "error" {
		return nil, &ProviderError{Message: env.Msg}
	}
	return &env, nil
}

// GetAppLogin fetches the application serving an external relying party's
// redirect-code request.
func (c *Client) GetAppLogin(ctx context.Context, p OAuthParams) (*Application, error) {
	env, err := c.do(ctx, http.MethodGet, "get-app-login", p.Values(), nil)
	if err != nil {
		return nil, err
	}
	var app Application
	if err := json.Unmarshal(env.Data, &app); err != nil {
		return nil, &TransportError{Op: "get-app-login", Err: err}
	}
	return &app, nil
}

// GetApplication fetches an application by its owner/name id for direct
// sign-in pages.
func (c *Client) GetApplication(ctx context.Context, id string) (*Application, error) {
	q := url.Values{}
	q.Set("id", id)
	env, err := c.do(ctx, http.MethodGet, "get-application", q, nil)
	if err != nil {
		return nil, err
	}
	var app Application
	if err := json.Unmarshal(env.Data, &app); err != nil {
		return nil, &TransportError{Op: "get-application", Err: err}
	}
	return &app, nil
}

// Login performs the exchange for every login variant. The relying
// party's own parameters ride along as query parameters. When simple is
// set the backend skips the redirect-code machinery (Web3 reactive flow).
func (c *Client) Login(ctx context.Context, req LoginRequest, p OAuthParams, simple bool) (*LoginResult, error) {
	q := p.Values()
	if simple {
		q.Set("simple", "true")
	}
	env, err := c.do(ctx, http.MethodPost, "login", q, req)
	if err != nil {
		return nil, err
	}

	var res LoginResult
	// Redirect-code flows answer with a bare code string; direct logins
	// answer with an object.
	var code string
	if json.Unmarshal(env.Data, &code) == nil && code != "" {
		res.Code = code
	} else if err := json.Unmarshal(env.Data, &res); err != nil {
		return nil, &TransportError{Op: "login", Err: err}
	}
	if len(env.Data2) > 0 {
		var flags struct {
			NeedConsent  bool `json:"needConsent"`
			NeedMFASetup bool `json:"needMfaSetup"`
		}
		if err := json.Unmarshal(env.Data2, &flags); err == nil {
			res.NeedConsent = flags.NeedConsent
			res.NeedMFASetup = flags.NeedMFASetup
		}
	}
	return &res, nil
}

// GetAccount asks the backend who is signed in. The returned snapshot is
// AccountAnonymous only when the server explicitly said so; on any
// failure it stays AccountUnknown so callers render nothing.
func (c *Client) GetAccount(ctx context.Context) (Snapshot, error) {
	env, err := c.do(ctx, http.MethodGet, "get-account", nil, nil)
	if err != nil {
		return Snapshot{State: AccountUnknown}, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return Snapshot{State: AccountAnonymous}, nil
	}
	var acc Account
	if err := json.Unmarshal(env.Data, &acc); err != nil {
		return Snapshot{State: AccountUnknown}, &TransportError{Op: "get-account", Err: err}
	}
	return Snapshot{State: AccountAuthenticated, Account: &acc}, nil
}

// GetEmailAndPhoneByUsername resolves the masked contact data shown on
// the password-recovery identify step.
func (c *Client) GetEmailAndPhoneByUsername(ctx context.Context, organization, username string) (*ContactInfo, error) {
	q := url.Values{}
	q.Set("organization", organization)
	q.Set("username", username)
	env, err := c.do(ctx, http.MethodGet, "get-email-and-phone-by-username", q, nil)
	if err != nil {
		return nil, err
	}
	var info ContactInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		return nil, &TransportError{Op: "get-email-and-phone-by-username", Err: err}
	}
	return &info, nil
}

// SendCode asks the backend to deliver a one-time code to the chosen
// destination. The authoritative rate limit lives server-side.
func (c *Client) SendCode(ctx context.Context, application, username, dest string) error {
	body := map[string]string{
		"application": application,
		"username":    username,
		"dest":        dest,
	}
	_, err := c.do(ctx, http.MethodPost, "send-code", nil, body)
	return err
}

// VerifyCode checks a one-time code and returns the short-lived user
// identifier that authorizes the reset step.
func (c *Client) VerifyCode(ctx context.Context, application, username, dest, code string) (string, error) {
	body := map[string]string{
		"application": application,
		"username":    username,
		"dest":        dest,
		"code":        code,
	}
	env, err := c.do(ctx, http.MethodPost, "verify-code", nil, body)
	if err != nil {
		return "", err
	}
	var userID string
	if err := json.Unmarshal(env.Data, &userID); err != nil {
		return "", &TransportError{Op: "verify-code", Err: err}
	}
	return userID, nil
}

// SetPassword finishes password recovery for the verified user.
func (c *Client) SetPassword(ctx context.Context, userID, password string) error {
	body := map[string]string{
		"userId":      userID,
		"newPassword": password,
	}
	_, err := c.do(ctx, http.MethodPost, "set-password", nil, body)
	return err
}

// GrantConsent records the user's approval for the resolved scopes and
// returns the authorization code to hand back to the relying party.
func (c *Client) GrantConsent(ctx context.Context, application, clientID string, scopes []string, state string) (string, error) {
	body := map[string]interface{}{
		"application": application,
		"clientId":    clientID,
		"scopes":      scopes,
		"state":       state,
	}
	env, err := c.do(ctx, http.MethodPost, "grant-consent", nil, body)
	if err != nil {
		return "", err
	}
	var code string
	if err := json.Unmarshal(env.Data, &code); err != nil {
		return "", &TransportError{Op: "grant-consent", Err: err}
	}
	return code, nil
}

// RevokeConsent withdraws a previously recorded grant.
func (c *Client) RevokeConsent(ctx context.Context, clientID string) error {
	body := map[string]string{"clientId": clientID}
	_, err := c.do(ctx, http.MethodPost, "revoke-consent", nil, body)
	return err
}

// Unlink severs a linked third-party identity from the current account.
func (c *Client) Unlink(ctx context.Context, providerName string) error {
	body := map[string]string{"provider": providerName}
	_, err := c.do(ctx, http.MethodPost, "unlink", nil, body)
	return err
}

// GetSAMLLogin asks the backend to start a SAML handshake. The returned
// content is either a URL to follow or an HTML document to render,
// discriminated by binding ("POST" means document).
func (c *Client) GetSAMLLogin(ctx context.Context, providerID, relayState string) (content, binding string, err error) {
	q := url.Values{}
	q.Set("providerId", providerID)
	q.Set("relayStateBase64", relayState)
	env, err := c.do(ctx, http.MethodGet, "get-saml-login", q, nil)
	if err != nil {
		return "", "", err
	}
	if err := json.Unmarshal(env.Data, &content); err != nil {
		return "", "", &TransportError{Op: "get-saml-login", Err: err}
	}
	if len(env.Data2) > 0 {
		if err := json.Unmarshal(env.Data2, &binding); err != nil {
			return "", "", &TransportError{Op: "get-saml-login", Err: err}
		}
	}
	return content, binding, nil
}

// InitiateMFASetup starts TOTP enrollment and returns the shared secret
// the backend generated for this account.
func (c *Client) InitiateMFASetup(ctx context.Context) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "mfa/setup/initiate", nil, nil)
	if err != nil {
		return "", err
	}
	var data struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", &TransportError{Op: "mfa/setup/initiate", Err: err}
	}
	return data.Secret, nil
}

// EnableMFA confirms enrollment with the first passcode.
func (c *Client) EnableMFA(ctx context.Context, passcode string) error {
	body := map[string]string{"passcode": passcode}
	_, err := c.do(ctx, http.MethodPost, "mfa/setup/enable", nil, body)
	return err
}

// BeginWebAuthnSignin fetches the credential assertion options for a
// WebAuthn step-up. The options are relayed untouched.
func (c *Client) BeginWebAuthnSignin(ctx context.Context) (json.RawMessage, error) {
	env, err := c.do(ctx, http.MethodGet, "webauthn/signin/begin", nil, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// FinishWebAuthnSignin posts the authenticator's assertion response back.
func (c *Client) FinishWebAuthnSignin(ctx context.Context, assertion json.RawMessage) error {
	_, err := c.do(ctx, http.MethodPost, "webauthn/signin/finish", nil, assertion)
	return err
}

// BaseURL exposes the backend root.
func (c *Client) BaseURL() string { return c.baseURL }
