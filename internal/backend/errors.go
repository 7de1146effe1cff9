package backend

import "fmt"

// TransportError means the backend was unreachable or returned something
// that is not an envelope. It is always user-visible and never retried
// automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: failed to connect to the backend: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError means the backend rejected the call. Message is the
// server's text, passed through verbatim and never reinterpreted.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string { return e.Message }
