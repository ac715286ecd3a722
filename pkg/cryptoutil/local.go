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

package cryptoutil

import (
	"context"
	"fmt"
)

// localProvider wraps the per-encryption DEK with a single static key
// instead of a cloud KMS, using the same AES-256-GCM wrap step the KMS
// providers use for the payload itself. This is the fallback for
// deployments with ENCRYPTION_KEY set and no cloud KMS reachable.
type localProvider struct {
	key []byte
}

func newLocalProvider(cfg Config) (*localProvider, error) {
	if len(cfg.LocalKey) != aesKeySize {
		return nil, fmt.Errorf("cryptoutil: local provider requires a %d-byte ENCRYPTION_KEY, got %d",
			aesKeySize, len(cfg.LocalKey))
	}
	return &localProvider{key: cfg.LocalKey}, nil
}

func (p *localProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	dek, err := newDEK()
	if err != nil {
		return nil, err
	}

	wrapNonce, wrappedDEK, err := aesGCMEncrypt(p.key, dek)
	if err != nil {
		return nil, err
	}
	// The wrap nonce rides along with the wrapped DEK itself since the
	// envelope only has one nonce slot, reserved for the payload.
	wrappedDEK = append(wrapNonce, wrappedDEK...)

	nonce, ciphertext, err := aesGCMEncrypt(dek, plaintext)
	if err != nil {
		return nil, err
	}

	return sealEnvelope(wrappedDEK, nonce, ciphertext, "local")
}

func (p *localProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	env, err := parseEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}

	nonceSize := 12 // AES-GCM standard nonce size, matches cipher.NewGCM's default
	if len(env.WrappedDEK) < nonceSize {
		return nil, fmt.Errorf("%w: wrapped DEK too short", ErrDecryptionFailed)
	}
	wrapNonce, wrappedDEK := env.WrappedDEK[:nonceSize], env.WrappedDEK[nonceSize:]

	dek, err := aesGCMDecrypt(p.key, wrapNonce, wrappedDEK)
	if err != nil {
		return nil, err
	}

	return aesGCMDecrypt(dek, env.Nonce, env.Ciphertext)
}

func (p *localProvider) Close() error { return nil }
