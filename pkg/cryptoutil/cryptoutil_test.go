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
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloud.google.com/go/kms/apiv1/kmspb"
)

func assertRoundTrip(t *testing.T, provider Provider) {
	t.Helper()
	ctx := context.Background()
	plaintext := []byte(`{"openai":"sk-live-abc123"}`)

	ciphertext, err := provider.Encrypt(ctx, plaintext)
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)

	var env envelope
	require.NoError(t, json.Unmarshal(ciphertext, &env))
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.WrappedDEK)
	assert.NotEmpty(t, env.Nonce)
	assert.NotEmpty(t, env.Ciphertext)

	decrypted, err := provider.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

// --- Local provider ---

func newTestLocalKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, aesKeySize)
	_, err := io.ReadFull(rand.Reader, key)
	require.NoError(t, err)
	return key
}

func TestLocalProvider_EncryptDecryptRoundTrip(t *testing.T) {
	p, err := newLocalProvider(Config{LocalKey: newTestLocalKey(t)})
	require.NoError(t, err)
	assertRoundTrip(t, p)
}

func TestLocalProvider_EmptyPlaintext(t *testing.T) {
	p, err := newLocalProvider(Config{LocalKey: newTestLocalKey(t)})
	require.NoError(t, err)

	ctx := context.Background()
	ciphertext, err := p.Encrypt(ctx, []byte{})
	require.NoError(t, err)

	decrypted, err := p.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestLocalProvider_WrongKeySizeRejected(t *testing.T) {
	_, err := newLocalProvider(Config{LocalKey: []byte("too-short")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32-byte ENCRYPTION_KEY")
}

func TestLocalProvider_DifferentKeysCannotDecryptEachOther(t *testing.T) {
	p1, err := newLocalProvider(Config{LocalKey: newTestLocalKey(t)})
	require.NoError(t, err)
	p2, err := newLocalProvider(Config{LocalKey: newTestLocalKey(t)})
	require.NoError(t, err)

	ciphertext, err := p1.Encrypt(context.Background(), []byte("secret"))
	require.NoError(t, err)

	_, err = p2.Decrypt(context.Background(), ciphertext)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))
}

func TestLocalProvider_TamperedCiphertextFailsDecrypt(t *testing.T) {
	p, err := newLocalProvider(Config{LocalKey: newTestLocalKey(t)})
	require.NoError(t, err)

	ciphertext, err := p.Encrypt(context.Background(), []byte("secret"))
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(ciphertext, &env))
	env.Ciphertext[0] ^= 0xFF
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = p.Decrypt(context.Background(), tampered)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))
}

// --- GCP KMS provider ---

func TestGCPKMSProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider := newGCPKMSProviderWithClient(newMockGCPKMSClient(), "projects/p/locations/global/keyRings/r/cryptoKeys/k")
	assertRoundTrip(t, provider)
}

func TestGCPKMSProvider_MissingKeyID(t *testing.T) {
	_, err := newGCPKMSProvider(Config{ProviderType: ProviderGCPKMS})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key ID is required")
}

func TestGCPKMSProvider_WrapFailurePropagates(t *testing.T) {
	mock := newMockGCPKMSClient()
	mock.EncryptFn = func(_ context.Context, _ *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
		return nil, fmt.Errorf("kms unreachable")
	}
	provider := newGCPKMSProviderWithClient(mock, "key")

	_, err := provider.Encrypt(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncryptionFailed))
}

func TestGCPKMSProvider_DecryptRejectsMalformedEnvelope(t *testing.T) {
	provider := newGCPKMSProviderWithClient(newMockGCPKMSClient(), "key")

	_, err := provider.Decrypt(context.Background(), []byte("not an envelope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))
}

func TestGCPKMSProvider_DecryptRejectsUnsupportedVersion(t *testing.T) {
	provider := newGCPKMSProviderWithClient(newMockGCPKMSClient(), "key")

	_, err := provider.Decrypt(context.Background(), []byte(`{"v":9,"wdek":"","nonce":"","ct":""}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported envelope version")
}

// --- AWS KMS provider ---

func TestAWSKMSProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider := newAWSKMSProviderWithClient(newMockAWSKMSClient(), "arn:aws:kms:us-east-1:123456789012:key/test")
	assertRoundTrip(t, provider)
}

func TestAWSKMSProvider_MissingRegion(t *testing.T) {
	_, err := newAWSKMSProvider(Config{ProviderType: ProviderAWSKMS, KeyID: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")
}

func TestAWSKMSProvider_GenerateDataKeyFailurePropagates(t *testing.T) {
	mock := newMockAWSKMSClient()
	mock.GenerateDataKeyFn = func(_ context.Context, _ *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
		return nil, fmt.Errorf("kms unreachable")
	}
	provider := newAWSKMSProviderWithClient(mock, "key")

	_, err := provider.Encrypt(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncryptionFailed))
}

// --- Azure Key Vault provider ---

func TestAzureKeyVaultProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider := newAzureKeyVaultProviderWithClient(newMockAzkeysClient(), "test-key", "")
	assertRoundTrip(t, provider)
}

func TestAzureKeyVaultProvider_MissingVaultURL(t *testing.T) {
	_, err := newAzureKeyVaultProvider(Config{ProviderType: ProviderAzureKeyVault, KeyID: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault URL is required")
}

func TestAzureKeyVaultProvider_UnwrapFailurePropagates(t *testing.T) {
	mock := newMockAzkeysClient()
	provider := newAzureKeyVaultProviderWithClient(mock, "test-key", "")

	ciphertext, err := provider.Encrypt(context.Background(), []byte("x"))
	require.NoError(t, err)

	mock.UnwrapKeyFn = func(_ context.Context, _, _ string, _ azkeys.KeyOperationParameters, _ *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error) {
		return azkeys.UnwrapKeyResponse{}, fmt.Errorf("vault unreachable")
	}

	_, err = provider.Decrypt(context.Background(), ciphertext)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))
}

// --- Factory ---

func TestNewProvider_Local(t *testing.T) {
	p, err := NewProvider(Config{ProviderType: ProviderLocal, LocalKey: newTestLocalKey(t)})
	require.NoError(t, err)
	require.NotNil(t, p)
	assertRoundTrip(t, p)
}

func TestNewProvider_UnknownType(t *testing.T) {
	_, err := NewProvider(Config{ProviderType: "made-up"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestEnvelope_RoundTripsThroughJSON(t *testing.T) {
	env := envelope{Version: envelopeVersion, WrappedDEK: []byte{1, 2, 3}, Nonce: []byte{4, 5}, Ciphertext: []byte{6, 7, 8}}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, bytes.Equal(env.WrappedDEK, decoded.WrappedDEK))
	assert.True(t, bytes.Equal(env.Nonce, decoded.Nonce))
	assert.True(t, bytes.Equal(env.Ciphertext, decoded.Ciphertext))
}
