// Package callback receives the user agent returning from an external
// identity provider and drives the exchange that turns the provider's
// answer into a session.
package callback

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"net/url"
	"sync"

	"github.com/crewjam/saml"
	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/flowstate"
	"github.com/dhawalhost/signgate/internal/session"
	"github.com/dhawalhost/signgate/internal/web3"
	"github.com/dhawalhost/signgate/pkg/nav"
	"github.com/dhawalhost/signgate/pkg/observability"
	"go.uber.org/zap"
)

// Phase is the callback state machine. Terminal phases are sticky: an
// invocation never leaves Succeeded or Failed, and Exchanging cannot be
// re-entered, so a code is never submitted twice.
type Phase int

const (
	PhasePending Phase = iota
	PhaseExchanging
	PhaseSucceeded
	PhaseFailed
)

// Invocation tracks one pass through the callback route.
type Invocation struct {
	mu      sync.Mutex
	phase   Phase
	message string
}

// Phase returns the current phase.
func (i *Invocation) Phase() Phase {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.phase
}

// Message returns the user-visible failure text, empty unless Failed.
func (i *Invocation) Message() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.message
}

func (i *Invocation) begin() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase != PhasePending {
		return false
	}
	i.phase = PhaseExchanging
	return true
}

func (i *Invocation) fail(msg string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase == PhaseSucceeded || i.phase == PhaseFailed {
		return
	}
	i.phase = PhaseFailed
	i.message = msg
}

func (i *Invocation) succeed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase != PhaseExchanging {
		return false
	}
	i.phase = PhaseSucceeded
	return true
}

const msgUnknownSession = "sign-in session unknown or expired, please restart sign-in"

// Dispatcher decodes the returned context and performs the exchange for
// each provider category.
type Dispatcher struct {
	client      *backend.Client
	establisher *session.Establisher
	origin      string
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(client *backend.Client, establisher *session.Establisher, origin string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{client: client, establisher: establisher, origin: origin, logger: logger}
}

// WithMetrics attaches exchange counters. Nil metrics are tolerated so
// tests can skip them.
func (d *Dispatcher) WithMetrics(m *observability.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

func (d *Dispatcher) recordExchange(category string, inv *Invocation) {
	if d.metrics == nil {
		return
	}
	outcome := "pending"
	switch inv.Phase() {
	case PhaseSucceeded:
		outcome = "succeeded"
	case PhaseFailed:
		outcome = "failed"
	}
	d.metrics.SignInExchanges.WithLabelValues(category, outcome).Inc()
}

// HandleOAuth processes the fixed OAuth/QR callback route. The state is
// decoded before anything else; an undecodable state never reaches the
// exchange endpoint.
func (d *Dispatcher) HandleOAuth(ctx context.Context, navc nav.Context, query url.Values) *Invocation {
	inv := &Invocation{}
	defer d.recordExchange("oauth", inv)

	st, err := flowstate.Decode(query.Get("state"))
	if err != nil {
		d.logger.Warn("callback state undecodable", zap.Error(err))
		inv.fail(msgUnknownSession)
		return inv
	}
	if !inv.begin() {
		return inv
	}

	app, err := d.client.GetApplication(ctx, "admin/"+st.ApplicationName)
	if err != nil {
		d.applyFailure(ctx, inv, err)
		return inv
	}

	params := backend.ParseOAuthParams(query)
	res, err := d.client.Login(ctx, backend.LoginRequest{
		Application: st.ApplicationName,
		Provider:    st.ProviderName,
		Type:        backend.LoginTypeCode,
		Code:        query.Get("code"),
		State:       query.Get("state"),
		RedirectURI: d.origin + "/callback",
		Method:      st.Method,
	}, params, false)
	if err != nil {
		d.applyFailure(ctx, inv, err)
		return inv
	}

	d.applySuccess(ctx, navc, inv, session.Exchange{
		Application: app,
		Params:      params,
		Result:      res,
		LoginType:   backend.LoginTypeCode,
	})
	return inv
}

// HandleSAML processes the POST-binding return route. The relay state is
// decoded and the response checked for well-formedness before the
// exchange; the response itself travels URL-encoded.
func (d *Dispatcher) HandleSAML(ctx context.Context, navc nav.Context, relayState, samlResponse string) *Invocation {
	inv := &Invocation{}
	defer d.recordExchange("saml", inv)

	relay, err := flowstate.DecodeRelay(relayState)
	if err != nil {
		d.logger.Warn("relay state undecodable", zap.Error(err))
		inv.fail(msgUnknownSession)
		return inv
	}
	if !wellFormedSAMLResponse(samlResponse) {
		inv.fail("malformed SAML response")
		return inv
	}
	if !inv.begin() {
		return inv
	}

	app, err := d.client.GetApplication(ctx, "admin/"+relay.ApplicationName)
	if err != nil {
		d.applyFailure(ctx, inv, err)
		return inv
	}

	params := backend.OAuthParams{
		ClientID:     relay.ClientID,
		ResponseType: "code",
		RedirectURI:  relay.RealRedirectURI,
	}
	res, err := d.client.Login(ctx, backend.LoginRequest{
		Application:  relay.ApplicationName,
		Provider:     relay.ProviderName,
		Type:         backend.LoginTypeCode,
		SAMLResponse: url.QueryEscape(samlResponse),
		RelayState:   relayState,
		RedirectURI:  relay.RealRedirectURI,
	}, params, false)
	if err != nil {
		d.applyFailure(ctx, inv, err)
		return inv
	}

	d.applySuccess(ctx, navc, inv, session.Exchange{
		Application: app,
		Params:      params,
		Result:      res,
		LoginType:   backend.LoginTypeCode,
	})
	return inv
}

// HandleWeb3 completes the wallet flow. There is no separate route:
// success is detected once both the address and the signature token are
// present, and the payload is built inline.
func (d *Dispatcher) HandleWeb3(ctx context.Context, navc nav.Context, stateParam string, token *web3.Token) *Invocation {
	inv := &Invocation{}
	defer d.recordExchange("web3", inv)

	st, err := flowstate.Decode(stateParam)
	if err != nil {
		inv.fail(msgUnknownSession)
		return inv
	}
	if token == nil || token.Address == "" || token.Signature == "" {
		inv.fail("wallet signature not present")
		return inv
	}
	if !inv.begin() {
		return inv
	}

	app, err := d.client.GetApplication(ctx, "admin/"+st.ApplicationName)
	if err != nil {
		d.applyFailure(ctx, inv, err)
		return inv
	}

	res, err := d.client.Login(ctx, backend.LoginRequest{
		Application:   st.ApplicationName,
		Provider:      st.ProviderName,
		Type:          backend.LoginTypeLogin,
		Web3Address:   token.Address,
		Web3Nonce:     token.Nonce,
		Web3CreatedAt: token.CreatedAt,
		Web3TypedData: token.TypedData,
		Web3Signature: token.Signature,
	}, backend.OAuthParams{}, true)
	if err != nil {
		d.applyFailure(ctx, inv, err)
		return inv
	}

	d.applySuccess(ctx, navc, inv, session.Exchange{
		Application: app,
		Params:      backend.OAuthParams{},
		Result:      res,
		LoginType:   backend.LoginTypeLogin,
	})
	return inv
}

// applyFailure records a terminal failure unless the view is already
// gone. The server message is surfaced verbatim.
func (d *Dispatcher) applyFailure(ctx context.Context, inv *Invocation, err error) {
	if ctx.Err() != nil {
		d.logger.Debug("late exchange result discarded", zap.Error(err))
		return
	}
	inv.fail(err.Error())
}

// applySuccess records success and hands off to the session establisher,
// unless the view navigated away while the exchange was pending.
func (d *Dispatcher) applySuccess(ctx context.Context, navc nav.Context, inv *Invocation, x session.Exchange) {
	if ctx.Err() != nil {
		d.logger.Debug("late exchange success discarded")
		return
	}
	if !inv.succeed() {
		return
	}
	if err := d.establisher.Establish(ctx, navc, x); err != nil {
		d.logger.Error("session establishment failed", zap.Error(err))
	}
}

// wellFormedSAMLResponse checks that the value is base64-wrapped XML that
// parses as a SAML response document. Signature and assertion validation
// are the backend's job.
func wellFormedSAMLResponse(samlResponse string) bool {
	raw, err := base64.StdEncoding.DecodeString(samlResponse)
	if err != nil {
		return false
	}
	var resp saml.Response
	return xml.Unmarshal(raw, &resp) == nil
}
