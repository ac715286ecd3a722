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

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/api/option"
)

// gcpKMSClient abstracts the Cloud KMS calls the provider needs, so tests
// can substitute a fake without a live GCP project.
type gcpKMSClient interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error)
	Close() error
}

type gcpKMSClientWrapper struct {
	client *kms.KeyManagementClient
}

func (w *gcpKMSClientWrapper) Encrypt(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
	return w.client.Encrypt(ctx, req)
}

func (w *gcpKMSClientWrapper) Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
	return w.client.Decrypt(ctx, req)
}

func (w *gcpKMSClientWrapper) Close() error { return w.client.Close() }

type gcpKMSProvider struct {
	client gcpKMSClient
	keyID  string
}

func newGCPKMSProvider(cfg Config) (*gcpKMSProvider, error) {
	if cfg.KeyID == "" {
		return nil, fmt.Errorf("gcp-kms: key ID is required")
	}

	var opts []option.ClientOption
	if creds := cfg.Credentials["credentials-json"]; creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}

	client, err := kms.NewKeyManagementClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gcp-kms: failed to create client: %w", err)
	}

	return &gcpKMSProvider{client: &gcpKMSClientWrapper{client: client}, keyID: cfg.KeyID}, nil
}

func (p *gcpKMSProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	dek, err := newDEK()
	if err != nil {
		return nil, err
	}

	wrapResp, err := p.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      p.keyID,
		Plaintext: dek,
	})
	if err != nil {
		return nil, wrapFailure(ErrEncryptionFailed, "KMS Encrypt (wrap DEK)", err)
	}

	nonce, ciphertext, err := aesGCMEncrypt(dek, plaintext)
	if err != nil {
		return nil, err
	}

	return sealEnvelope(wrapResp.Ciphertext, nonce, ciphertext, "")
}

func (p *gcpKMSProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	env, err := parseEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}

	decryptResp, err := p.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       p.keyID,
		Ciphertext: env.WrappedDEK,
	})
	if err != nil {
		return nil, wrapFailure(ErrDecryptionFailed, "KMS Decrypt", err)
	}

	return aesGCMDecrypt(decryptResp.Plaintext, env.Nonce, env.Ciphertext)
}

func (p *gcpKMSProvider) Close() error { return p.client.Close() }

// newGCPKMSProviderWithClient injects a client for testing.
func newGCPKMSProviderWithClient(client gcpKMSClient, keyID string) *gcpKMSProvider {
	return &gcpKMSProvider{client: client, keyID: keyID}
}
