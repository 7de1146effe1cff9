package callback

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dhawalhost/signgate/internal/authurl"
	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/flowstate"
	"github.com/dhawalhost/signgate/internal/session"
	"github.com/dhawalhost/signgate/internal/web3"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, f *fakeBackend) (*gin.Engine, web3.TokenStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(srv.URL, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := web3.OpenTokenStore(filepath.Join(t.TempDir(), "tokens.db"))
	if err != nil {
		t.Fatal(err)
	}

	est := session.NewEstablisher(client, zap.NewNop())
	d := NewDispatcher(client, est, "https://door.example.com", zap.NewNop())
	b := authurl.NewBuilder("https://door.example.com", client, nil, zap.NewNop())

	r := gin.New()
	NewHTTPHandler(d, b, client, tokens, zap.NewNop()).RegisterRoutes(r)
	return r, tokens
}

func TestCallbackRouteRedirectsOnSuccess(t *testing.T) {
	f := &fakeBackend{}
	r, _ := newRouter(t, f)

	q := url.Values{}
	q.Set("code", "c0de")
	q.Set("state", flowstate.Encode("app", "github-provider", flowstate.MethodSignIn))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/callback?"+q.Encode(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if atomic.LoadInt64(&f.loginCalls) != 1 {
		t.Fatalf("login calls = %d", f.loginCalls)
	}
}

func TestCallbackRouteRendersFailureEnvelope(t *testing.T) {
	r, _ := newRouter(t, &fakeBackend{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/callback?state=garbage", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"status":"error"`) || !strings.Contains(body, "unknown or expired") {
		t.Fatalf("body = %s", body)
	}
}

func TestCallbackRouteDispatchesWeb3ByTokenParam(t *testing.T) {
	f := &fakeBackend{}
	r, tokens := newRouter(t, f)

	err := tokens.Put(t.Context(), web3.Token{
		Address:   "0xAbC123",
		Nonce:     "n",
		CreatedAt: "2026-01-01T00:00:00Z",
		TypedData: "{}",
		Signature: "0xdeadbeef",
	})
	if err != nil {
		t.Fatal(err)
	}

	q := url.Values{}
	q.Set("state", flowstate.Encode("app", "metamask", flowstate.MethodSignIn))
	q.Set("web3AccessToken", "0xAbC123")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/callback?"+q.Encode(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if f.lastLoginReq.Web3Address != "0xAbC123" {
		t.Fatalf("payload: %+v", f.lastLoginReq)
	}
}

func TestSAMLCallbackRouteReadsPostForm(t *testing.T) {
	f := &fakeBackend{}
	r, _ := newRouter(t, f)

	relay := flowstate.EncodeRelay(flowstate.Relay{
		ClientID:        "abc",
		ApplicationName: "app",
		ProviderName:    "okta-saml",
		RealRedirectURI: "https://rp.example/cb",
		OwnRedirectURI:  "https://door.example.com/callback/saml",
	})
	form := url.Values{}
	form.Set("RelayState", relay)
	form.Set("SAMLResponse", samlResponseB64())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/callback/saml", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if f.lastLoginReq.Provider != "okta-saml" {
		t.Fatalf("provider = %q", f.lastLoginReq.Provider)
	}
}
