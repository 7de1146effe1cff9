// Package web3 drives the wallet signature handshake: a locally built
// typed-data challenge is signed by the user's wallet and cached per
// address, then referenced from an otherwise normal authorization URL.
package web3

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// TypedData is the EIP-712 style challenge presented to the wallet.
type TypedData struct {
	Domain  Domain  `json:"domain"`
	Message Message `json:"message"`
}

// Domain scopes the signature to this application.
type Domain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Message is the signed payload. Nonce and CreatedAt make every
// challenge fresh; Address binds it to the wallet that signed.
type Message struct {
	Prompt    string `json:"prompt"`
	Nonce     string `json:"nonce"`
	Address   string `json:"address"`
	CreatedAt string `json:"createdAt"`
}

const challengePrompt = "In order to authenticate to this website, sign this request and your public address will be sent to the server in a verifiable way."

// NewChallenge builds a fresh challenge for the given wallet address.
func NewChallenge(address string) TypedData {
	return TypedData{
		Domain: Domain{Name: "signgate", Version: "1"},
		Message: Message{
			Prompt:    challengePrompt,
			Nonce:     uuid.NewString(),
			Address:   address,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Hash returns the Keccak-256 digest the wallet is asked to sign.
func (d TypedData) Hash() []byte {
	raw, _ := json.Marshal(d)
	h := sha3.NewLegacyKeccak256()
	h.Write(raw)
	return h.Sum(nil)
}

// WalletSigner is the injected wallet capability. The orchestrator never
// talks to a browser extension directly.
type WalletSigner interface {
	// Address returns the connected wallet address.
	Address(ctx context.Context) (string, error)
	// SignTypedData prompts the wallet to sign the challenge.
	SignTypedData(ctx context.Context, data TypedData) ([]byte, error)
	// RecoverAddress returns the address that produced the signature.
	RecoverAddress(data TypedData, signature []byte) (string, error)
}
