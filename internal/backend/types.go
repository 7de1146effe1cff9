package backend

import (
	"net/url"

	"github.com/dhawalhost/signgate/internal/provider"
)

// Application is the relying-party configuration fetched once per page
// lifecycle and held immutable until the next navigation.
type Application struct {
	Name           string             `json:"name"`
	Organization   string             `json:"organization"`
	DisplayName    string             `json:"displayName"`
	EnablePassword bool               `json:"enablePassword"`
	EnableSignUp   bool               `json:"enableSignUp"`
	EnableConsent  bool               `json:"enableConsent"`
	HomepageURL    string             `json:"homepageUrl"`
	Providers      []provider.Binding `json:"providers"`

	// Fields the user must answer before the application considers the
	// account complete; a non-empty unanswered set forces the prompt page.
	PromptFields []string `json:"promptFields"`

	// Optional custom-form HTML fragments injected into the sign-in and
	// sign-up surfaces.
	SignInHTML string `json:"signinHtml"`
	SignUpHTML string `json:"signupHtml"`
}

// DefaultBinding returns the provider binding flagged isDefault, if any.
func (a *Application) DefaultBinding() *provider.Binding {
	for i := range a.Providers {
		if a.Providers[i].IsDefault {
			return &a.Providers[i]
		}
	}
	return nil
}

// Account is a server-confirmed identity.
type Account struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Organization       string            `json:"organization"`
	Email              string            `json:"email"`
	Phone              string            `json:"phone"`
	NeedUpdatePassword bool              `json:"needUpdatePassword"`
	MFAEnrolled        bool              `json:"mfaEnrolled"`
	Properties         map[string]string `json:"properties"`
}

// AnsweredPrompt reports whether the account already carries a value for
// every prompt field the application requires.
func (acc *Account) AnsweredPrompt(app *Application) bool {
	for _, f := range app.PromptFields {
		if acc.Properties[f] == "" {
			return false
		}
	}
	return true
}

// AccountState is the explicit three-state replacement for the easy to
// miss "null vs undefined" distinction: before the server has answered,
// nothing may be rendered, not a login prompt.
type AccountState int

const (
	// AccountUnknown means the server has not been asked, or the ask failed.
	AccountUnknown AccountState = iota
	// AccountAnonymous means the server confirmed there is no session.
	AccountAnonymous
	// AccountAuthenticated means the server returned an account.
	AccountAuthenticated
)

// Snapshot pairs an AccountState with the account, present only in the
// authenticated state.
type Snapshot struct {
	State   AccountState
	Account *Account
}

// OAuthParams are the redirect-code parameters the relying party passed to
// the sign-in page. Parsed once from the page's own query string and
// read-only thereafter.
type OAuthParams struct {
	ClientID     string
	ResponseType string
	RedirectURI  string
	Scope        string
	State        string
}

// ParseOAuthParams reads the relying party's parameters from a query
// string. Absent values stay empty; the backend decides what is required.
func ParseOAuthParams(q url.Values) OAuthParams {
	return OAuthParams{
		ClientID:     q.Get("client_id"),
		ResponseType: q.Get("response_type"),
		RedirectURI:  q.Get("redirect_uri"),
		Scope:        q.Get("scope"),
		State:        q.Get("state"),
	}
}

// Values renders the parameters back into query form for backend calls.
func (p OAuthParams) Values() url.Values {
	v := url.Values{}
	v.Set("clientId", p.ClientID)
	v.Set("responseType", p.ResponseType)
	v.Set("redirectUri", p.RedirectURI)
	v.Set("scope", p.Scope)
	v.Set("state", p.State)
	return v
}

// IsExternal reports whether the page is serving an external relying
// party's redirect-code request rather than a direct sign-in.
func (p OAuthParams) IsExternal() bool {
	return p.ClientID != "" && p.RedirectURI != ""
}

// LoginRequest is the exchange payload for every login variant. Unused
// fields are omitted on the wire.
type LoginRequest struct {
	Application  string `json:"application"`
	Organization string `json:"organization,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	Type         string `json:"type"`
	Provider     string `json:"provider,omitempty"`
	Code         string `json:"code,omitempty"`
	State        string `json:"state,omitempty"`
	RedirectURI  string `json:"redirectUri,omitempty"`
	Method       string `json:"method,omitempty"`

	SAMLResponse string `json:"samlResponse,omitempty"`
	RelayState   string `json:"relayState,omitempty"`

	Web3Address   string `json:"web3Address,omitempty"`
	Web3Nonce     string `json:"web3Nonce,omitempty"`
	Web3CreatedAt string `json:"web3CreatedAt,omitempty"`
	Web3TypedData string `json:"web3TypedData,omitempty"`
	Web3Signature string `json:"web3Signature,omitempty"`

	MFAType     string `json:"mfaType,omitempty"`
	MFAPasscode string `json:"mfaPasscode,omitempty"`
}

// Login types understood by the backend.
const (
	LoginTypeCode  = "code"  // redirect-code flow for an external relying party
	LoginTypeLogin = "login" // direct sign-in on the local surface
)

// LoginResult is the successful outcome of an exchange.
type LoginResult struct {
	// Code is set for redirect-code flows and handed back to the relying
	// party; AccessToken is set for direct logins.
	Code        string `json:"code"`
	AccessToken string `json:"accessToken"`

	// Post-exchange requirements signalled by the backend.
	NeedConsent  bool `json:"needConsent"`
	NeedMFASetup bool `json:"needMfaSetup"`
}

// ContactInfo is the masked contact data resolved for a username during
// password recovery.
type ContactInfo struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Contact destinations for one-time codes.
const (
	DestEmail = "email"
	DestPhone = "phone"
)
