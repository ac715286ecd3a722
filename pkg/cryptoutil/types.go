/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cryptoutil envelope-encrypts the external_keys blob an org
// stores on its record: a random AES-256 data encryption key (DEK) is
// generated once per Encrypt call, wraps through a cloud KMS (or, with no
// KMS configured, through a static key derived from ENCRYPTION_KEY), and
// the plaintext is sealed locally with AES-256-GCM so the KMS round trip
// never sees the org's actual provider keys.
package cryptoutil

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors every Provider wraps its failures in, so callers can
// branch with errors.Is without caring which backend is configured.
var (
	ErrEncryptionFailed = errors.New("cryptoutil: encryption failed")
	ErrDecryptionFailed = errors.New("cryptoutil: decryption failed")
)

const (
	aesKeySize      = 32 // AES-256
	envelopeVersion = 1
)

// envelope is the JSON structure stored as an org's encrypted
// external_keys column. WrappedDEK is opaque to everything except the
// KMS (or local key) that produced it; Nonce and Ciphertext are the
// AES-256-GCM output over the plaintext JSON blob of provider keys.
type envelope struct {
	Version    int    `json:"v"`
	WrappedDEK []byte `json:"wdek"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ct"`
	KeyVersion string `json:"kv,omitempty"`
}

// Provider encrypts and decrypts an org's external_keys blob. Encrypt
// produces an opaque envelope safe to store alongside the org record;
// Decrypt is the inverse. Close releases any network client the
// provider holds (KMS providers only — the local provider is a no-op).
type Provider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

func wrapFailure(base error, op string, err error) error {
	return fmt.Errorf("%w: %s: %v", base, op, err)
}
