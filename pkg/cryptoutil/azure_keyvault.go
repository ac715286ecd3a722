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

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
)

const wrapAlgorithm = azkeys.EncryptionAlgorithmRSAOAEP256

// azkeysClient abstracts the Key Vault calls the provider needs.
type azkeysClient interface {
	WrapKey(ctx context.Context, keyName, keyVersion string, parameters azkeys.KeyOperationParameters,
		options *azkeys.WrapKeyOptions) (azkeys.WrapKeyResponse, error)
	UnwrapKey(ctx context.Context, keyName, keyVersion string, parameters azkeys.KeyOperationParameters,
		options *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error)
}

type azureKeyVaultProvider struct {
	client     azkeysClient
	keyName    string
	keyVersion string
}

func newAzureKeyVaultProvider(cfg Config) (*azureKeyVaultProvider, error) {
	if cfg.VaultURL == "" {
		return nil, fmt.Errorf("azure-keyvault: vault URL is required")
	}
	if cfg.KeyID == "" {
		return nil, fmt.Errorf("azure-keyvault: key ID is required")
	}

	cred, err := azureCredentialFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("azure-keyvault: credential error: %w", err)
	}

	client, err := azkeys.NewClient(cfg.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure-keyvault: client creation error: %w", err)
	}

	return &azureKeyVaultProvider{client: client, keyName: cfg.KeyID}, nil
}

func azureCredentialFromConfig(cfg Config) (azcore.TokenCredential, error) {
	tenantID, clientID, clientSecret := cfg.Credentials["tenant-id"], cfg.Credentials["client-id"], cfg.Credentials["client-secret"]
	if tenantID != "" && clientID != "" && clientSecret != "" {
		return azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

func (p *azureKeyVaultProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	dek, err := newDEK()
	if err != nil {
		return nil, err
	}

	algo := wrapAlgorithm
	wrapResp, err := p.client.WrapKey(ctx, p.keyName, p.keyVersion, azkeys.KeyOperationParameters{
		Algorithm: &algo,
		Value:     dek,
	}, nil)
	if err != nil {
		return nil, wrapFailure(ErrEncryptionFailed, "key vault wrap key", err)
	}

	nonce, ciphertext, err := aesGCMEncrypt(dek, plaintext)
	if err != nil {
		return nil, err
	}

	keyVersion := p.keyVersion
	if wrapResp.KID != nil {
		keyVersion = wrapResp.KID.Version()
	}

	return sealEnvelope(wrapResp.Result, nonce, ciphertext, keyVersion)
}

func (p *azureKeyVaultProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	env, err := parseEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}

	algo := wrapAlgorithm
	unwrapResp, err := p.client.UnwrapKey(ctx, p.keyName, env.KeyVersion, azkeys.KeyOperationParameters{
		Algorithm: &algo,
		Value:     env.WrappedDEK,
	}, nil)
	if err != nil {
		return nil, wrapFailure(ErrDecryptionFailed, "key vault unwrap key", err)
	}

	return aesGCMDecrypt(unwrapResp.Result, env.Nonce, env.Ciphertext)
}

func (p *azureKeyVaultProvider) Close() error { return nil }

// newAzureKeyVaultProviderWithClient injects a client for testing.
func newAzureKeyVaultProviderWithClient(client azkeysClient, keyName, keyVersion string) *azureKeyVaultProvider {
	return &azureKeyVaultProvider{client: client, keyName: keyName, keyVersion: keyVersion}
}
