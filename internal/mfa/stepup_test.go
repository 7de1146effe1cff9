package mfa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

type fakeBackend struct {
	secret      string
	enableCalls int64
	finishBody  json.RawMessage
}

func (f *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/mfa/setup/initiate":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "ok",
				"data":   map[string]string{"secret": f.secret},
			})
		case "/api/mfa/setup/enable":
			atomic.AddInt64(&f.enableCalls, 1)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		case "/api/webauthn/signin/begin":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "ok",
				"data": map[string]interface{}{
					"publicKey": map[string]interface{}{
						"challenge": "Y2hhbGxlbmdl",
						"rpId":      "door.example.com",
					},
				},
			})
		case "/api/webauthn/signin/finish":
			body, _ := json.Marshal(map[string]string{"status": "ok"})
			f.finishBody, _ = readAll(r)
			_, _ = w.Write(body)
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}
	})
}

func readAll(r *http.Request) (json.RawMessage, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

func newSetup(t *testing.T, f *fakeBackend) (*Setup, *backend.Client) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(srv.URL, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	s, err := BeginSetup(context.Background(), client, "alice", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return s, client
}

func testSecret(t *testing.T) string {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "signgate", AccountName: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	return key.Secret()
}

func TestEnableWithValidPasscode(t *testing.T) {
	f := &fakeBackend{secret: testSecret(t)}
	s, _ := newSetup(t, f)

	code, err := totp.GenerateCode(f.secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Enable(context.Background(), code); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&f.enableCalls) != 1 {
		t.Fatalf("enable calls = %d", f.enableCalls)
	}
}

func TestWrongPasscodeNeverReachesNetwork(t *testing.T) {
	f := &fakeBackend{secret: testSecret(t)}
	s, _ := newSetup(t, f)

	err := s.Enable(context.Background(), "000000")
	var ipe *InvalidPasscodeError
	if !errors.As(err, &ipe) {
		t.Fatalf("err = %v, want *InvalidPasscodeError", err)
	}
	if atomic.LoadInt64(&f.enableCalls) != 0 {
		t.Fatal("enable was called despite the local rejection")
	}
}

func TestProvisioningQRCode(t *testing.T) {
	f := &fakeBackend{secret: testSecret(t)}
	s, _ := newSetup(t, f)

	u := s.ProvisioningURL()
	if want := "otpauth://totp/signgate:alice?"; len(u) < len(want) || u[:len(want)] != want {
		t.Fatalf("provisioning url = %q", u)
	}
	pngBytes, err := s.QRCodePNG()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pngBytes, []byte("\x89PNG")) {
		t.Fatal("QR code is not a PNG")
	}
}

type scriptedAuthenticator struct {
	sawRPID string
}

func (a *scriptedAuthenticator) Assert(_ context.Context, options protocol.CredentialAssertion) (json.RawMessage, error) {
	a.sawRPID = options.Response.RelyingPartyID
	return json.RawMessage(`{"id":"cred-1","type":"public-key"}`), nil
}

func TestWebAuthnRelaysOptionsAndAssertion(t *testing.T) {
	f := &fakeBackend{secret: testSecret(t)}
	_, client := newSetup(t, f)

	auth := &scriptedAuthenticator{}
	if err := StepUpWebAuthn(context.Background(), client, auth); err != nil {
		t.Fatal(err)
	}
	if auth.sawRPID != "door.example.com" {
		t.Fatalf("relying party id = %q", auth.sawRPID)
	}
	if !bytes.Contains(f.finishBody, []byte(`"cred-1"`)) {
		t.Fatalf("assertion not posted back: %s", f.finishBody)
	}
}
