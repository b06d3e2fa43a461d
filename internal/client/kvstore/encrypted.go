package kvstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/carledger/internal/cryptox"
)

const (
	saltKey     = "kv_salt"
	verifierKey = "kv_verifier"
)

var ErrWrongPassphrase = errors.New("wrong passphrase for local store")

// EncryptedStore seals every value before handing it to the inner store.
// The salt and a key verifier are kept in plain text under reserved keys.
type EncryptedStore struct {
	inner Store
	key   []byte
}

// NewEncryptedStore derives the key from passphrase, creating the salt on
// first use. A passphrase that does not match the stored verifier yields
// ErrWrongPassphrase.
//
// The verifier is written before the salt, so an interrupted setup leaves
// no salt and is simply redone. A salt without a verifier is accepted only
// if the passphrase opens the data already stored.
func NewEncryptedStore(ctx context.Context, inner Store, passphrase []byte) (*EncryptedStore, error) {
	salt, err := inner.Get(ctx, saltKey)
	if err != nil {
		return nil, err
	}

	if salt == nil {
		salt, err = cryptox.NewSalt()
		if err != nil {
			return nil, err
		}
		key := cryptox.DeriveMasterKey(passphrase, salt)
		if err := inner.Set(ctx, verifierKey, cryptox.MakeVerifier(key)); err != nil {
			return nil, err
		}
		if err := inner.Set(ctx, saltKey, salt); err != nil {
			return nil, err
		}
		return &EncryptedStore{inner: inner, key: key}, nil
	}

	e := &EncryptedStore{inner: inner, key: cryptox.DeriveMasterKey(passphrase, salt)}
	verifier, err := inner.Get(ctx, verifierKey)
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		if err := e.restoreVerifier(ctx); err != nil {
			return nil, err
		}
		return e, nil
	}
	if !bytes.Equal(verifier, cryptox.MakeVerifier(e.key)) {
		return nil, ErrWrongPassphrase
	}
	return e, nil
}

// restoreVerifier checks the key against one stored value, if there is
// any, and writes the missing verifier.
func (e *EncryptedStore) restoreVerifier(ctx context.Context) error {
	keys, err := e.Keys(ctx, "")
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if _, err := e.Get(ctx, keys[0]); err != nil {
			return ErrWrongPassphrase
		}
	}
	return e.inner.Set(ctx, verifierKey, cryptox.MakeVerifier(e.key))
}

func (e *EncryptedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.inner.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	plain, err := cryptox.Open(e.key, sealed, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (e *EncryptedStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptox.Seal(e.key, value, []byte(key))
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return e.inner.Set(ctx, key, sealed)
}

func (e *EncryptedStore) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

// Keys hides the reserved salt and verifier keys.
func (e *EncryptedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := e.inner.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if k == saltKey || k == verifierKey {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}
