package authurl

import (
	"bytes"
	"image/png"
	"net/url"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/provider"
	"github.com/google/uuid"
)

// QRCode is an authorization URL rendered as a scannable code. The nonce
// disambiguates successive renders so a stale code cannot complete after
// a refresh.
type QRCode struct {
	URL   string
	PNG   []byte
	Nonce string
}

const qrSize = 256

// BuildQRCode builds the authorization URL for a QR-polling provider and
// renders it as a PNG.
func (b *Builder) BuildQRCode(app *backend.Application, p provider.Provider, method string) (*QRCode, error) {
	entry, err := provider.Lookup(p.Type)
	if err != nil {
		return nil, err
	}
	if !entry.QRPolling {
		return nil, &NotQRProviderError{Type: p.Type}
	}

	raw, err := b.BuildAuthURL(app, p, method)
	if err != nil {
		return nil, err
	}
	nonce := uuid.NewString()
	withNonce, err := appendQuery(raw, "nonce", nonce)
	if err != nil {
		return nil, err
	}

	code, err := qr.Encode(withNonce, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, qrSize, qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}

	return &QRCode{URL: withNonce, PNG: buf.Bytes(), Nonce: nonce}, nil
}

// RefreshQRCode regenerates the code with a fresh nonce.
func (b *Builder) RefreshQRCode(app *backend.Application, p provider.Provider, method string) (*QRCode, error) {
	return b.BuildQRCode(app, p, method)
}

// NotQRProviderError reports a QR render request for a provider that is
// followed directly instead.
type NotQRProviderError struct {
	Type provider.Type
}

func (e *NotQRProviderError) Error() string {
	return "provider type " + string(e.Type) + " does not use QR polling"
}

// appendQuery adds one parameter to an already-assembled URL, keeping any
// fragment at the end where providers expect it.
func appendQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
