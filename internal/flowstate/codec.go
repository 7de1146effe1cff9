// Package flowstate encodes the opaque context carried through an external
// identity provider's redirect hop. The encoding is reversible transport
// plumbing, not a security token: the server enforces the actual boundary.
package flowstate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Method values accepted inside a State.
const (
	MethodSignIn = "signin"
	MethodSignUp = "signup"
	MethodLink   = "link"
)

// State is the context a sign-in surface needs back after the provider
// redirects to the callback route.
type State struct {
	ApplicationName string `json:"applicationName"`
	ProviderName    string `json:"providerName"`
	Method          string `json:"method"`
}

// DecodeError reports a state string that is not one of ours. Callers must
// treat it as "unknown or expired sign-in context", never as a crash.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "malformed flow state: " + e.Reason
}

// Encode produces the transport-safe opaque string handed to the provider.
func Encode(applicationName, providerName, method string) string {
	raw, _ := json.Marshal(State{
		ApplicationName: applicationName,
		ProviderName:    providerName,
		Method:          method,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode is the exact inverse of Encode.
func Decode(s string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return State{}, &DecodeError{Reason: "not base64url"}
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, &DecodeError{Reason: "not a state document"}
	}
	if st.ApplicationName == "" || st.ProviderName == "" {
		return State{}, &DecodeError{Reason: "missing application or provider"}
	}
	switch st.Method {
	case MethodSignIn, MethodSignUp, MethodLink:
	default:
		return State{}, &DecodeError{Reason: fmt.Sprintf("unknown method %q", st.Method)}
	}
	return st, nil
}
