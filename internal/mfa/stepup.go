// Package mfa drives the step-up requirements the backend can attach to
// a fresh session: TOTP enrollment and WebAuthn assertion.
package mfa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net/url"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const issuer = "signgate"

// InvalidPasscodeError is a local check failure; it never reaches the
// network.
type InvalidPasscodeError struct{}

func (e *InvalidPasscodeError) Error() string {
	return "the passcode does not match the enrolled secret"
}

// Setup is one TOTP enrollment: the backend generated the secret, the
// client renders it and confirms the first passcode.
type Setup struct {
	client      *backend.Client
	accountName string
	secret      string
	logger      *zap.Logger
}

// BeginSetup asks the backend for a fresh TOTP secret.
func BeginSetup(ctx context.Context, client *backend.Client, accountName string, logger *zap.Logger) (*Setup, error) {
	secret, err := client.InitiateMFASetup(ctx)
	if err != nil {
		return nil, err
	}
	return &Setup{client: client, accountName: accountName, secret: secret, logger: logger}, nil
}

// ProvisioningURL is the otpauth URL an authenticator app enrolls from.
func (s *Setup) ProvisioningURL() string {
	v := url.Values{}
	v.Set("secret", s.secret)
	v.Set("issuer", issuer)
	return fmt.Sprintf("otpauth://totp/%s:%s?%s",
		url.PathEscape(issuer), url.PathEscape(s.accountName), v.Encode())
}

// QRCodePNG renders the provisioning URL as a scannable code.
func (s *Setup) QRCodePNG() ([]byte, error) {
	key, err := otp.NewKeyFromURL(s.ProvisioningURL())
	if err != nil {
		return nil, err
	}
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Enable confirms enrollment. The passcode is checked against the secret
// locally first, so a typo costs no round trip; the backend still
// verifies on its side.
func (s *Setup) Enable(ctx context.Context, passcode string) error {
	if !totp.Validate(passcode, s.secret) {
		return &InvalidPasscodeError{}
	}
	return s.client.EnableMFA(ctx, passcode)
}

// Authenticator is the injected credential capability for WebAuthn
// step-up; the orchestrator never talks to platform authenticators
// directly.
type Authenticator interface {
	Assert(ctx context.Context, options protocol.CredentialAssertion) (json.RawMessage, error)
}

// StepUpWebAuthn relays the backend's assertion options to the
// authenticator and posts the raw response back untouched.
func StepUpWebAuthn(ctx context.Context, client *backend.Client, auth Authenticator) error {
	raw, err := client.BeginWebAuthnSignin(ctx)
	if err != nil {
		return err
	}
	var options protocol.CredentialAssertion
	if err := json.Unmarshal(raw, &options); err != nil {
		return fmt.Errorf("malformed assertion options: %w", err)
	}
	assertion, err := auth.Assert(ctx, options)
	if err != nil {
		return err
	}
	return client.FinishWebAuthnSignin(ctx, assertion)
}
