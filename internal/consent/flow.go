// Package consent is the single grant/deny decision point between a
// successful exchange and the relying party's redirect.
package consent

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/session"
	"github.com/dhawalhost/signgate/pkg/nav"
	"go.uber.org/zap"
)

// Outcome is the flow position. Granted and Denied are terminal for the
// same authorization request.
type Outcome int

const (
	OutcomeReview Outcome = iota
	OutcomeGranted
	OutcomeDenied
)

// ErrDecided is returned when a decision is re-attempted after either
// outcome.
var ErrDecided = errors.New("consent already decided for this authorization request")

const deniedDescription = "User denied consent"

// Flow reviews one authorization request. The mutex serializes
// concurrent decisions so a double-submit observes ErrDecided instead of
// racing past the outcome guard.
type Flow struct {
	client *backend.Client
	app    *backend.Application
	params backend.OAuthParams
	scopes []string
	logger *zap.Logger

	mu      sync.Mutex
	outcome Outcome
}

// NewFlow creates a Flow at the review stage for the resolved scopes.
func NewFlow(client *backend.Client, app *backend.Application, params backend.OAuthParams, scopes []string, logger *zap.Logger) *Flow {
	return &Flow{client: client, app: app, params: params, scopes: scopes, logger: logger}
}

// Outcome returns the decision state.
func (f *Flow) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

// Scopes returns the scope list under review.
func (f *Flow) Scopes() []string { return f.scopes }

// Grant records the approval server-side and sends the user agent back to
// the relying party with the resulting authorization code. A backend
// rejection leaves the flow reviewable so the error can be shown.
func (f *Flow) Grant(ctx context.Context, navc nav.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome != OutcomeReview {
		return ErrDecided
	}
	code, err := f.client.GrantConsent(ctx, f.app.Name, f.params.ClientID, f.scopes, f.params.State)
	if err != nil {
		return err
	}
	f.outcome = OutcomeGranted
	navc.Navigate(session.RedirectWithCode(f.params.RedirectURI, code, f.params.State))
	return nil
}

// Deny sends the user agent back with the standard access_denied error
// without contacting the grant endpoint.
func (f *Flow) Deny(navc nav.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome != OutcomeReview {
		return ErrDecided
	}
	f.outcome = OutcomeDenied

	sep := "?"
	if strings.Contains(f.params.RedirectURI, "?") {
		sep = "&"
	}
	navc.Navigate(f.params.RedirectURI + sep +
		"error=access_denied" +
		"&error_description=" + escapeSpaces(deniedDescription) +
		"&state=" + escapeSpaces(f.params.State))
	return nil
}

// escapeSpaces query-escapes with %20 for spaces, the form relying
// parties expect in error descriptions.
func escapeSpaces(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
