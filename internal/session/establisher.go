// Package session decides the single navigation that completes a
// successful exchange: consent, prompt, forced password change, MFA
// setup, the relying party's redirect, or the home surface.
package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/pkg/nav"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Exchange is a completed, successful callback exchange together with
// the flow it belongs to.
type Exchange struct {
	Application *backend.Application
	Params      backend.OAuthParams
	Result      *backend.LoginResult
	LoginType   string // backend.LoginTypeCode or backend.LoginTypeLogin
}

// Establisher turns a successful exchange into exactly one terminal
// navigation.
type Establisher struct {
	client *backend.Client
	logger *zap.Logger
}

// NewEstablisher creates an Establisher.
func NewEstablisher(client *backend.Client, logger *zap.Logger) *Establisher {
	return &Establisher{client: client, logger: logger}
}

// Establish fetches the account and applies the first matching rule:
//  1. unrecorded consent        -> consent surface
//  2. unanswered prompt fields  -> prompt page, resumable
//  3. forced password update    -> password wizard
//  4. forced MFA enrollment     -> MFA setup page
//  5. external relying party    -> redirectUri?code&state
//  6. otherwise                 -> home surface
func (e *Establisher) Establish(ctx context.Context, navc nav.Context, x Exchange) error {
	snap, err := e.client.GetAccount(ctx)
	if err != nil {
		return err
	}
	switch snap.State {
	case backend.AccountAnonymous:
		// Server confirmed there is no session: safe to restart sign-in.
		navc.Replace("/login/" + x.Application.Name)
		return nil
	case backend.AccountUnknown:
		return fmt.Errorf("account state unknown after exchange")
	}
	acc := snap.Account

	e.logTokenExpiry(x.Result.AccessToken)

	app, params, res := x.Application, x.Params, x.Result
	switch {
	case app.EnableConsent && res.NeedConsent:
		v := url.Values{}
		v.Set("clientId", params.ClientID)
		v.Set("scope", params.Scope)
		v.Set("redirectUri", params.RedirectURI)
		v.Set("code", res.Code)
		v.Set("state", params.State)
		navc.Navigate("/consent?" + v.Encode())

	case len(app.PromptFields) > 0 && !acc.AnsweredPrompt(app):
		v := url.Values{}
		v.Set("redirectUri", params.RedirectURI)
		v.Set("code", res.Code)
		v.Set("state", params.State)
		navc.Navigate("/prompt/" + app.Name + "?" + v.Encode())

	case acc.NeedUpdatePassword:
		navc.Navigate("/forgot/" + app.Name)

	case res.NeedMFASetup && !acc.MFAEnrolled:
		navc.Navigate("/mfa/setup")

	case x.LoginType == backend.LoginTypeCode && params.IsExternal():
		navc.Navigate(RedirectWithCode(params.RedirectURI, res.Code, params.State))

	default:
		home := app.HomepageURL
		if home == "" {
			home = "/"
		}
		navc.Navigate(home)
	}
	return nil
}

// Unlink severs a linked third-party identity from the current account.
func (e *Establisher) Unlink(ctx context.Context, providerName string) error {
	return e.client.Unlink(ctx, providerName)
}

// RedirectWithCode composes the relying party's return URL, switching the
// separator when the redirect URI already carries a query string.
func RedirectWithCode(redirectURI, code, state string) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	return redirectURI + sep + "code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state)
}

// logTokenExpiry peeks at the session token purely for diagnostics.
// Verification is the backend's job.
func (e *Establisher) logTokenExpiry(token string) {
	if token == "" {
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		e.logger.Debug("session established", zap.Time("tokenExpiry", exp.Time))
	}
}
