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

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
)

type mockAzkeysClient struct {
	WrapKeyFn   func(ctx context.Context, keyName, keyVersion string, params azkeys.KeyOperationParameters, options *azkeys.WrapKeyOptions) (azkeys.WrapKeyResponse, error)
	UnwrapKeyFn func(ctx context.Context, keyName, keyVersion string, params azkeys.KeyOperationParameters, options *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error)
}

func (m *mockAzkeysClient) WrapKey(ctx context.Context, keyName, keyVersion string, params azkeys.KeyOperationParameters, options *azkeys.WrapKeyOptions) (azkeys.WrapKeyResponse, error) {
	return m.WrapKeyFn(ctx, keyName, keyVersion, params, options)
}

func (m *mockAzkeysClient) UnwrapKey(ctx context.Context, keyName, keyVersion string, params azkeys.KeyOperationParameters, options *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error) {
	return m.UnwrapKeyFn(ctx, keyName, keyVersion, params, options)
}

func newMockAzkeysClient() *mockAzkeysClient {
	xorKey := []byte("mock-kms-wrapping-key-32bytes!!!")
	xor := func(b []byte) []byte {
		out := make([]byte, len(b))
		for i, c := range b {
			out[i] = c ^ xorKey[i%len(xorKey)]
		}
		return out
	}
	kid := azkeys.ID("https://test.vault.azure.net/keys/test-key/abc123")

	return &mockAzkeysClient{
		WrapKeyFn: func(_ context.Context, _, _ string, params azkeys.KeyOperationParameters, _ *azkeys.WrapKeyOptions) (azkeys.WrapKeyResponse, error) {
			return azkeys.WrapKeyResponse{
				KeyOperationResult: azkeys.KeyOperationResult{Result: xor(params.Value), KID: &kid},
			}, nil
		},
		UnwrapKeyFn: func(_ context.Context, _, _ string, params azkeys.KeyOperationParameters, _ *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error) {
			return azkeys.UnwrapKeyResponse{
				KeyOperationResult: azkeys.KeyOperationResult{Result: xor(params.Value), KID: &kid},
			}, nil
		},
	}
}
