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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
)

// aesGCMEncrypt encrypts plaintext with AES-256-GCM under dek, returning a
// fresh random nonce alongside the ciphertext.
func aesGCMEncrypt(dek, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, nil, wrapFailure(ErrEncryptionFailed, "AES cipher creation", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, wrapFailure(ErrEncryptionFailed, "GCM creation", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, wrapFailure(ErrEncryptionFailed, "nonce generation", err)
	}

	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

// aesGCMDecrypt reverses aesGCMEncrypt.
func aesGCMDecrypt(dek, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, wrapFailure(ErrDecryptionFailed, "AES cipher creation", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, wrapFailure(ErrDecryptionFailed, "GCM creation", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, wrapFailure(ErrDecryptionFailed, "AES-GCM open", err)
	}
	return plaintext, nil
}

// newDEK generates a random AES-256 data encryption key.
func newDEK() ([]byte, error) {
	dek := make([]byte, aesKeySize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, wrapFailure(ErrEncryptionFailed, "DEK generation", err)
	}
	return dek, nil
}

func parseEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, wrapFailure(ErrDecryptionFailed, "envelope unmarshal", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", ErrDecryptionFailed, env.Version)
	}
	return &env, nil
}

func sealEnvelope(wrappedDEK, nonce, ciphertext []byte, keyVersion string) ([]byte, error) {
	env := envelope{
		Version:    envelopeVersion,
		WrappedDEK: wrappedDEK,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		KeyVersion: keyVersion,
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return nil, wrapFailure(ErrEncryptionFailed, "envelope marshal", err)
	}
	return envBytes, nil
}
