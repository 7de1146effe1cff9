package flowstate

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// Relay is the context carried through a SAML identity provider as the
// RelayState parameter and returned unchanged on the POST binding.
type Relay struct {
	ClientID        string
	ApplicationName string
	ProviderName    string
	RealRedirectURI string
	OwnRedirectURI  string
}

const relayFieldCount = 5

// EncodeRelay joins the five relay fields into a single opaque token.
// Each field is percent-encoded before the join so a field containing "&"
// cannot shift the others on decode.
func EncodeRelay(r Relay) string {
	fields := []string{
		url.QueryEscape(r.ClientID),
		url.QueryEscape(r.ApplicationName),
		url.QueryEscape(r.ProviderName),
		url.QueryEscape(r.RealRedirectURI),
		url.QueryEscape(r.OwnRedirectURI),
	}
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(fields, "&")))
}

// DecodeRelay is the exact inverse of EncodeRelay.
func DecodeRelay(token string) (Relay, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Relay{}, &DecodeError{Reason: "relay state not base64"}
	}
	fields := strings.Split(string(raw), "&")
	if len(fields) != relayFieldCount {
		return Relay{}, &DecodeError{Reason: "relay state field count mismatch"}
	}
	decoded := make([]string, relayFieldCount)
	for i, f := range fields {
		v, err := url.QueryUnescape(f)
		if err != nil {
			return Relay{}, &DecodeError{Reason: "relay state field not percent-encoded"}
		}
		decoded[i] = v
	}
	return Relay{
		ClientID:        decoded[0],
		ApplicationName: decoded[1],
		ProviderName:    decoded[2],
		RealRedirectURI: decoded[3],
		OwnRedirectURI:  decoded[4],
	}, nil
}
