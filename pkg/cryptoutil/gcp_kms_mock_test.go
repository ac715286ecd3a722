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

	"cloud.google.com/go/kms/apiv1/kmspb"
)

type mockGCPKMSClient struct {
	EncryptFn func(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error)
	DecryptFn func(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error)
}

func (m *mockGCPKMSClient) Encrypt(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
	return m.EncryptFn(ctx, req)
}

func (m *mockGCPKMSClient) Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
	return m.DecryptFn(ctx, req)
}

func (m *mockGCPKMSClient) Close() error { return nil }

// newMockGCPKMSClient wraps/unwraps DEKs by XORing with a fixed key, the
// same stand-in every mock KMS client in this package uses.
func newMockGCPKMSClient() *mockGCPKMSClient {
	xorKey := []byte("mock-kms-wrapping-key-32bytes!!!")
	xor := func(b []byte) []byte {
		out := make([]byte, len(b))
		for i, c := range b {
			out[i] = c ^ xorKey[i%len(xorKey)]
		}
		return out
	}

	return &mockGCPKMSClient{
		EncryptFn: func(_ context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
			return &kmspb.EncryptResponse{Ciphertext: xor(req.Plaintext), Name: req.Name}, nil
		},
		DecryptFn: func(_ context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
			return &kmspb.DecryptResponse{Plaintext: xor(req.Ciphertext)}, nil
		},
	}
}
