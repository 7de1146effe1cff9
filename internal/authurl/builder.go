// Package authurl builds provider authorization URLs and performs the
// provider-specific navigation that starts an external sign-in.
package authurl

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/flowstate"
	"github.com/dhawalhost/signgate/internal/provider"
	"github.com/dhawalhost/signgate/internal/web3"
	"github.com/dhawalhost/signgate/pkg/nav"
	"github.com/dhawalhost/signgate/pkg/observability"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Builder assembles authorization destinations for every provider
// category. origin is the externally visible root of this gateway.
type Builder struct {
	origin  string
	client  *backend.Client
	wallet  *web3.Prompter
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(origin string, client *backend.Client, wallet *web3.Prompter, logger *zap.Logger) *Builder {
	return &Builder{origin: origin, client: client, wallet: wallet, logger: logger}
}

// WithMetrics attaches URL-build counters. Nil metrics are tolerated so
// tests can skip them.
func (b *Builder) WithMetrics(m *observability.Metrics) *Builder {
	b.metrics = m
	return b
}

// CallbackURL is where every OAuth-shaped provider redirects back to.
func (b *Builder) CallbackURL() string { return b.origin + "/callback" }

// SAMLCallbackURL is the POST-binding return route.
func (b *Builder) SAMLCallbackURL() string { return b.origin + "/callback/saml" }

// buildFunc produces the final URL for one provider type. Adding a
// provider type is a table change, not a new branch.
type buildFunc func(p provider.Provider, e provider.Entry, redirectURI, state string) (string, error)

var oauthBuilders = map[provider.Type]buildFunc{
	provider.TypeGitHub:   buildStandard,
	provider.TypeGoogle:   buildStandard,
	provider.TypeFacebook: buildStandard,
	provider.TypeWeibo:    buildStandard,
	provider.TypeGitee:    buildStandard,
	provider.TypeLinkedIn: buildStandard,
	provider.TypeLark:     buildStandard,
	provider.TypeGitLab:   buildStandard,
	provider.TypeWeChat:   buildWeChat,
	provider.TypeDingTalk: buildAppID,
	provider.TypeWeCom:    buildAppID,
}

// BuildAuthURL returns the authorization URL for an OAuth, QR or Custom
// category provider. SAML and Web3 providers navigate through StartSAML
// and StartWeb3 instead.
func (b *Builder) BuildAuthURL(app *backend.Application, p provider.Provider, method string) (string, error) {
	entry, err := provider.Lookup(p.Type)
	if err != nil {
		return "", err
	}
	state := flowstate.Encode(app.Name, p.Name, method)
	redirectURI := b.CallbackURL()
	if b.metrics != nil {
		b.metrics.AuthURLsBuilt.WithLabelValues(string(p.Type)).Inc()
	}

	switch entry.Category {
	case provider.CategoryOAuth:
		build, ok := oauthBuilders[p.Type]
		if !ok {
			return "", fmt.Errorf("provider type %q has no URL builder", p.Type)
		}
		return build(p, entry, redirectURI, state)
	case provider.CategoryCustom:
		return buildCustom(p, entry, redirectURI, state)
	default:
		return "", fmt.Errorf("category %s does not build a plain URL", entry.Category)
	}
}

// buildStandard covers providers that accept the stock authorization
// code request shape.
func buildStandard(p provider.Provider, e provider.Entry, redirectURI, state string) (string, error) {
	conf := &oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: redirectURI,
		Scopes:      []string{e.Scope},
		Endpoint:    oauth2.Endpoint{AuthURL: e.Endpoint},
	}
	return conf.AuthCodeURL(state), nil
}

// buildWeChat embeds appid instead of client_id, appends the fragment
// marker the provider requires, and selects the in-app endpoint for the
// silent method.
func buildWeChat(p provider.Provider, e provider.Entry, redirectURI, state string) (string, error) {
	endpoint, scope := e.Endpoint, e.Scope
	if p.Method == provider.MethodSilent && e.SilentEndpoint != "" {
		endpoint, scope = e.SilentEndpoint, e.SilentScope
	}
	v := url.Values{}
	v.Set("appid", p.ClientID)
	v.Set("redirect_uri", redirectURI)
	v.Set("scope", scope)
	v.Set("response_type", "code")
	v.Set("state", state)
	return endpoint + "?" + v.Encode() + "#wechat_redirect", nil
}

// buildAppID covers providers that take appid but are otherwise standard.
func buildAppID(p provider.Provider, e provider.Entry, redirectURI, state string) (string, error) {
	v := url.Values{}
	v.Set("appid", p.ClientID)
	v.Set("redirect_uri", redirectURI)
	v.Set("scope", e.Scope)
	v.Set("response_type", "code")
	v.Set("state", state)
	return e.Endpoint + "?" + v.Encode(), nil
}

// buildCustom uses the endpoint configured on the provider itself.
func buildCustom(p provider.Provider, _ provider.Entry, redirectURI, state string) (string, error) {
	if p.CustomAuthURL == "" {
		return "", fmt.Errorf("custom provider %q has no authorization endpoint configured", p.Name)
	}
	v := url.Values{}
	v.Set("client_id", p.ClientID)
	v.Set("redirect_uri", redirectURI)
	v.Set("scope", p.CustomScope)
	v.Set("response_type", "code")
	v.Set("state", state)
	return p.CustomAuthURL + "?" + v.Encode(), nil
}

// StartSAML performs the server round trip that begins a SAML handshake,
// then either follows the returned URL or writes the returned document.
func (b *Builder) StartSAML(ctx context.Context, navc nav.Context, app *backend.Application, p provider.Provider, params backend.OAuthParams) error {
	relay := flowstate.EncodeRelay(flowstate.Relay{
		ClientID:        params.ClientID,
		ApplicationName: app.Name,
		ProviderName:    p.Name,
		RealRedirectURI: params.RedirectURI,
		OwnRedirectURI:  b.SAMLCallbackURL(),
	})
	providerID := app.Organization + "/" + p.Name
	content, binding, err := b.client.GetSAMLLogin(ctx, providerID, relay)
	if err != nil {
		return err
	}
	if binding == "POST" {
		navc.WriteDocument(content)
	} else {
		navc.Navigate(content)
	}
	return nil
}

// StartWeb3 obtains a wallet signature token and navigates to the
// callback surface carrying the token's lookup key.
func (b *Builder) StartWeb3(ctx context.Context, navc nav.Context, app *backend.Application, p provider.Provider, method string) error {
	if b.wallet == nil {
		return fmt.Errorf("no wallet capability configured")
	}
	token, err := b.wallet.Token(ctx)
	if err != nil {
		return err
	}
	v := url.Values{}
	v.Set("state", flowstate.Encode(app.Name, p.Name, method))
	v.Set("web3AccessToken", token.Address)
	navc.Navigate(b.CallbackURL() + "?" + v.Encode())
	return nil
}

// StartDefault fires the default provider binding as a side effect of
// first render, skipping manual provider selection. It reports whether a
// navigation happened.
func (b *Builder) StartDefault(ctx context.Context, navc nav.Context, app *backend.Application, params backend.OAuthParams) (bool, error) {
	binding := app.DefaultBinding()
	if binding == nil {
		return false, nil
	}
	p := binding.Provider
	entry, err := provider.Lookup(p.Type)
	if err != nil {
		return false, err
	}
	switch entry.Category {
	case provider.CategorySAML:
		return true, b.StartSAML(ctx, navc, app, p, params)
	case provider.CategoryWeb3:
		return true, b.StartWeb3(ctx, navc, app, p, flowstate.MethodSignIn)
	default:
		u, err := b.BuildAuthURL(app, p, flowstate.MethodSignIn)
		if err != nil {
			return false, err
		}
		navc.Navigate(u)
		return true, nil
	}
}
