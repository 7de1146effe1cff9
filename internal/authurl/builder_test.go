package authurl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/flowstate"
	"github.com/dhawalhost/signgate/internal/provider"
	"github.com/dhawalhost/signgate/pkg/nav"
	"go.uber.org/zap"
)

const origin = "https://door.example.com"

func testApp() *backend.Application {
	return &backend.Application{Name: "app-built-in", Organization: "built-in"}
}

func newBuilder(t *testing.T, handler http.Handler) *Builder {
	t.Helper()
	var client *backend.Client
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		c, err := backend.NewClient(srv.URL, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		client = c
	}
	return NewBuilder(origin, client, nil, zap.NewNop())
}

func TestEveryOAuthTypeCarriesStateAndCallback(t *testing.T) {
	b := newBuilder(t, nil)
	app := testApp()
	for _, typ := range provider.Types() {
		entry := provider.MustLookup(typ)
		if entry.Category != provider.CategoryOAuth {
			continue
		}
		p := provider.Provider{Name: "p-" + string(typ), Type: typ, ClientID: "cid"}
		raw, err := b.BuildAuthURL(app, p, flowstate.MethodSignIn)
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("%s: malformed URL %q: %v", typ, raw, err)
		}
		q := u.Query()
		if q.Get("state") == "" {
			t.Errorf("%s: missing state in %q", typ, raw)
		}
		if got := q.Get("redirect_uri"); got != origin+"/callback" {
			t.Errorf("%s: redirect_uri = %q", typ, got)
		}
	}
}

func TestGitHubSignupURL(t *testing.T) {
	b := newBuilder(t, nil)
	p := provider.Provider{Name: "github-provider", Type: provider.TypeGitHub, ClientID: "abc"}
	raw, err := b.BuildAuthURL(testApp(), p, flowstate.MethodSignUp)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(raw)
	if u.Host != "github.com" || u.Path != "/login/oauth/authorize" {
		t.Fatalf("endpoint = %s%s", u.Host, u.Path)
	}
	q := u.Query()
	if q.Get("client_id") != "abc" || q.Get("response_type") != "code" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("scope") != "user:email read:user" {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
	st, err := flowstate.Decode(q.Get("state"))
	if err != nil {
		t.Fatal(err)
	}
	if st.ApplicationName != "app-built-in" || st.ProviderName != "github-provider" || st.Method != flowstate.MethodSignUp {
		t.Fatalf("state round trip: %+v", st)
	}
}

func TestWeChatShapes(t *testing.T) {
	b := newBuilder(t, nil)
	p := provider.Provider{Name: "wx", Type: provider.TypeWeChat, ClientID: "wxid"}

	normal, err := b.BuildAuthURL(testApp(), p, flowstate.MethodSignIn)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(normal, "appid=wxid") || !strings.HasSuffix(normal, "#wechat_redirect") {
		t.Fatalf("normal wechat URL = %q", normal)
	}
	if !strings.Contains(normal, "qrconnect") {
		t.Fatalf("normal method should use the QR endpoint: %q", normal)
	}

	p.Method = provider.MethodSilent
	silent, err := b.BuildAuthURL(testApp(), p, flowstate.MethodSignIn)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(silent, "oauth2/authorize") || !strings.Contains(silent, "snsapi_userinfo") {
		t.Fatalf("silent method URL = %q", silent)
	}
}

func TestUnknownTypeIsAnError(t *testing.T) {
	b := newBuilder(t, nil)
	p := provider.Provider{Name: "x", Type: provider.Type("Friendster"), ClientID: "cid"}
	if _, err := b.BuildAuthURL(testApp(), p, flowstate.MethodSignIn); err == nil {
		t.Fatal("expected error, got a URL for an uncataloged type")
	}
}

func TestCustomProviderNeedsEndpoint(t *testing.T) {
	b := newBuilder(t, nil)
	p := provider.Provider{Name: "corp", Type: provider.TypeCustom, ClientID: "cid"}
	if _, err := b.BuildAuthURL(testApp(), p, flowstate.MethodSignIn); err == nil {
		t.Fatal("custom provider without endpoint must not build")
	}
	p.CustomAuthURL = "https://idp.corp.example/authorize"
	raw, err := b.BuildAuthURL(testApp(), p, flowstate.MethodSignIn)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(raw, p.CustomAuthURL+"?") {
		t.Fatalf("custom URL = %q", raw)
	}
}

func TestQRCodeRefreshChangesNonce(t *testing.T) {
	b := newBuilder(t, nil)
	p := provider.Provider{Name: "wx", Type: provider.TypeWeChat, ClientID: "wxid"}

	first, err := b.BuildQRCode(testApp(), p, flowstate.MethodSignIn)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.RefreshQRCode(testApp(), p, flowstate.MethodSignIn)
	if err != nil {
		t.Fatal(err)
	}
	if first.Nonce == second.Nonce {
		t.Fatal("refresh must regenerate the nonce")
	}
	if len(first.PNG) == 0 {
		t.Fatal("no PNG rendered")
	}
	if _, err := b.BuildQRCode(testApp(), provider.Provider{Name: "gh", Type: provider.TypeGitHub}, flowstate.MethodSignIn); err == nil {
		t.Fatal("non-QR provider must not render a code")
	}
}

func TestStartSAMLBindings(t *testing.T) {
	var gotRelay string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRelay = r.URL.Query().Get("relayStateBase64")
		binding := "POST"
		data := "<html><form action=\"https://idp.example/sso\"></form></html>"
		if r.URL.Query().Get("providerId") == "built-in/redirect-idp" {
			binding = "Redirect"
			data = "https://idp.example/sso?SAMLRequest=..."
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok", "data": data, "data2": binding,
		})
	})
	b := newBuilder(t, handler)
	params := backend.OAuthParams{ClientID: "abc", RedirectURI: "https://rp.example/cb"}

	rec := &nav.Recorder{}
	p := provider.Provider{Name: "post-idp", Type: provider.TypeKeycloak}
	if err := b.StartSAML(context.Background(), rec, testApp(), p, params); err != nil {
		t.Fatal(err)
	}
	if len(rec.Documents) != 1 || len(rec.Navigations) != 0 {
		t.Fatalf("POST binding must write a document, recorder: %+v", rec)
	}
	relay, err := flowstate.DecodeRelay(gotRelay)
	if err != nil {
		t.Fatal(err)
	}
	if relay.OwnRedirectURI != origin+"/callback/saml" || relay.ProviderName != "post-idp" {
		t.Fatalf("relay = %+v", relay)
	}

	rec = &nav.Recorder{}
	p = provider.Provider{Name: "redirect-idp", Type: provider.TypeKeycloak}
	if err := b.StartSAML(context.Background(), rec, testApp(), p, params); err != nil {
		t.Fatal(err)
	}
	if len(rec.Navigations) != 1 {
		t.Fatalf("redirect binding must navigate, recorder: %+v", rec)
	}
}

func TestStartDefaultFiresOnce(t *testing.T) {
	b := newBuilder(t, nil)
	app := testApp()
	app.Providers = []provider.Binding{{
		Provider:  provider.Provider{Name: "gh", Type: provider.TypeGitHub, ClientID: "abc"},
		IsDefault: true,
	}}
	rec := &nav.Recorder{}
	fired, err := b.StartDefault(context.Background(), rec, app, backend.OAuthParams{})
	if err != nil {
		t.Fatal(err)
	}
	if !fired || rec.Count() != 1 {
		t.Fatalf("fired=%v count=%d", fired, rec.Count())
	}

	fired, err = b.StartDefault(context.Background(), &nav.Recorder{}, testApp(), backend.OAuthParams{})
	if err != nil || fired {
		t.Fatalf("no default binding: fired=%v err=%v", fired, err)
	}
}
