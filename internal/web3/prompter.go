package web3

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Prompter obtains a valid signature token for the connected wallet,
// reusing the cached one when its signature still recovers to the same
// address and regenerating it otherwise.
type Prompter struct {
	signer WalletSigner
	store  TokenStore
	logger *zap.Logger
}

// NewPrompter wires the wallet capability to the local token cache.
func NewPrompter(signer WalletSigner, store TokenStore, logger *zap.Logger) *Prompter {
	return &Prompter{signer: signer, store: store, logger: logger}
}

// Token returns a signature token for the connected wallet, prompting
// the wallet to sign a fresh challenge only when the cache cannot serve.
func (p *Prompter) Token(ctx context.Context) (*Token, error) {
	address, err := p.signer.Address(ctx)
	if err != nil {
		return nil, err
	}

	if cached, err := p.store.Get(ctx, address); err == nil && cached != nil {
		if p.valid(cached) {
			return cached, nil
		}
		p.logger.Info("cached wallet token failed recovery check, regenerating",
			zap.String("address", address))
		_ = p.store.Delete(ctx, address)
	}

	data := NewChallenge(address)
	sig, err := p.signer.SignTypedData(ctx, data)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(data)
	token := Token{
		Address:   address,
		Nonce:     data.Message.Nonce,
		CreatedAt: data.Message.CreatedAt,
		TypedData: string(raw),
		Signature: EncodeSignature(sig),
	}
	if err := p.store.Put(ctx, token); err != nil {
		return nil, err
	}
	return &token, nil
}

// valid replays the recovery check on a cached token.
func (p *Prompter) valid(t *Token) bool {
	var data TypedData
	if err := json.Unmarshal([]byte(t.TypedData), &data); err != nil {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(t.Signature, "0x"))
	if err != nil {
		return false
	}
	recovered, err := p.signer.RecoverAddress(data, sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered, t.Address)
}
