package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/pkg/nav"
	"go.uber.org/zap"
)

func clientReturningAccount(t *testing.T, account map[string]interface{}) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		if account != nil {
			body["data"] = account
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	c, err := backend.NewClient(srv.URL, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func baseExchange() Exchange {
	return Exchange{
		Application: &backend.Application{Name: "app", EnableConsent: true},
		Params: backend.OAuthParams{
			ClientID:     "abc",
			ResponseType: "code",
			RedirectURI:  "https://rp.example/cb",
			Scope:        "read",
			State:        "xyz",
		},
		Result:    &backend.LoginResult{Code: "c0de"},
		LoginType: backend.LoginTypeCode,
	}
}

func establish(t *testing.T, account map[string]interface{}, x Exchange) *nav.Recorder {
	t.Helper()
	e := NewEstablisher(clientReturningAccount(t, account), zap.NewNop())
	rec := &nav.Recorder{}
	if err := e.Establish(context.Background(), rec, x); err != nil {
		t.Fatal(err)
	}
	if rec.Count() != 1 {
		t.Fatalf("exactly one navigation must fire, got %d", rec.Count())
	}
	return rec
}

func TestConsentWinsOverEverything(t *testing.T) {
	x := baseExchange()
	x.Application.PromptFields = []string{"email"}
	x.Result.NeedConsent = true
	x.Result.NeedMFASetup = true
	rec := establish(t, map[string]interface{}{"name": "alice", "needUpdatePassword": true}, x)
	if !strings.HasPrefix(rec.Last(), "/consent?") {
		t.Fatalf("navigated to %q, want consent surface", rec.Last())
	}
}

func TestPromptBeatsPasswordChange(t *testing.T) {
	// The scenario from the ordering property: needUpdatePassword is set
	// and a prompt field is unanswered; the prompt page must win.
	x := baseExchange()
	x.Application.PromptFields = []string{"country"}
	rec := establish(t, map[string]interface{}{"name": "alice", "needUpdatePassword": true}, x)
	last := rec.Last()
	if !strings.HasPrefix(last, "/prompt/app?") {
		t.Fatalf("navigated to %q, want prompt page", last)
	}
	for _, param := range []string{"redirectUri=", "code=", "state="} {
		if !strings.Contains(last, param) {
			t.Fatalf("prompt URL %q must preserve %s for resumption", last, param)
		}
	}
}

func TestPasswordChangeForced(t *testing.T) {
	rec := establish(t, map[string]interface{}{"name": "alice", "needUpdatePassword": true}, baseExchange())
	if rec.Last() != "/forgot/app" {
		t.Fatalf("navigated to %q, want password wizard", rec.Last())
	}
}

func TestMFASetupForced(t *testing.T) {
	x := baseExchange()
	x.Result.NeedMFASetup = true
	rec := establish(t, map[string]interface{}{"name": "alice"}, x)
	if rec.Last() != "/mfa/setup" {
		t.Fatalf("navigated to %q, want MFA setup", rec.Last())
	}
}

func TestExternalRelyingPartyRedirect(t *testing.T) {
	rec := establish(t, map[string]interface{}{"name": "alice"}, baseExchange())
	if rec.Last() != "https://rp.example/cb?code=c0de&state=xyz" {
		t.Fatalf("navigated to %q", rec.Last())
	}
}

func TestLocalLoginLandsHome(t *testing.T) {
	x := baseExchange()
	x.LoginType = backend.LoginTypeLogin
	x.Params = backend.OAuthParams{}
	x.Application.HomepageURL = "https://home.example"
	rec := establish(t, map[string]interface{}{"name": "alice"}, x)
	if rec.Last() != "https://home.example" {
		t.Fatalf("navigated to %q", rec.Last())
	}
}

func TestAnonymousAfterExchangeRestartsSignIn(t *testing.T) {
	e := NewEstablisher(clientReturningAccount(t, nil), zap.NewNop())
	rec := &nav.Recorder{}
	if err := e.Establish(context.Background(), rec, baseExchange()); err != nil {
		t.Fatal(err)
	}
	if len(rec.Replaced) != 1 || rec.Replaced[0] != "/login/app" {
		t.Fatalf("recorder: %+v", rec)
	}
}

func TestRedirectWithCodeSeparator(t *testing.T) {
	if got := RedirectWithCode("https://rp.example/cb", "c", "s"); got != "https://rp.example/cb?code=c&state=s" {
		t.Fatal(got)
	}
	if got := RedirectWithCode("https://rp.example/cb?a=1", "c", "s"); got != "https://rp.example/cb?a=1&code=c&state=s" {
		t.Fatal(got)
	}
}
