package web3

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/dhawalhost/signgate/pkg/database"
	"github.com/jmoiron/sqlx"
)

// Token is a cached wallet signature, keyed by address. It is the only
// cross-session mutable state in the orchestrator core.
type Token struct {
	Address   string `db:"address" json:"address"`
	Nonce     string `db:"nonce" json:"nonce"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	TypedData string `db:"typed_data" json:"typedData"`
	Signature string `db:"signature" json:"signature"`
}

// TokenStore persists signature tokens client-locally.
type TokenStore interface {
	Get(ctx context.Context, address string) (*Token, error)
	Put(ctx context.Context, t Token) error
	Delete(ctx context.Context, address string) error
}

type sqlTokenStore struct {
	db *sqlx.DB
}

const tokenSchema = `
CREATE TABLE IF NOT EXISTS web3_tokens (
	address    TEXT PRIMARY KEY,
	nonce      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	typed_data TEXT NOT NULL,
	signature  TEXT NOT NULL
)`

// OpenTokenStore opens (and if needed initializes) the local token cache.
func OpenTokenStore(path string) (TokenStore, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(tokenSchema); err != nil {
		return nil, err
	}
	return &sqlTokenStore{db: db}, nil
}

func (s *sqlTokenStore) Get(ctx context.Context, address string) (*Token, error) {
	var t Token
	err := s.db.GetContext(ctx, &t, `SELECT * FROM web3_tokens WHERE address = ?`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *sqlTokenStore) Put(ctx context.Context, t Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO web3_tokens (address, nonce, created_at, typed_data, signature)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			nonce = excluded.nonce,
			created_at = excluded.created_at,
			typed_data = excluded.typed_data,
			signature = excluded.signature
	`, t.Address, t.Nonce, t.CreatedAt, t.TypedData, t.Signature)
	return err
}

func (s *sqlTokenStore) Delete(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM web3_tokens WHERE address = ?`, address)
	return err
}

// EncodeSignature renders a wallet signature for transport.
func EncodeSignature(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}
