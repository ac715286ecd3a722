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
	"crypto/rand"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type mockAWSKMSClient struct {
	GenerateDataKeyFn func(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	DecryptFn         func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

func (m *mockAWSKMSClient) GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	return m.GenerateDataKeyFn(ctx, params, optFns...)
}

func (m *mockAWSKMSClient) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	return m.DecryptFn(ctx, params, optFns...)
}

// newMockAWSKMSClient generates a real AES-256 DEK and "wraps" it by
// XORing with a fixed key, standing in for KMS's actual wrap step.
func newMockAWSKMSClient() *mockAWSKMSClient {
	xorKey := []byte("mock-kms-wrapping-key-32bytes!!!")
	xor := func(b []byte) []byte {
		out := make([]byte, len(b))
		for i, c := range b {
			out[i] = c ^ xorKey[i%len(xorKey)]
		}
		return out
	}

	return &mockAWSKMSClient{
		GenerateDataKeyFn: func(_ context.Context, params *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
			dek := make([]byte, aesKeySize)
			if _, err := io.ReadFull(rand.Reader, dek); err != nil {
				return nil, err
			}
			return &kms.GenerateDataKeyOutput{Plaintext: dek, CiphertextBlob: xor(dek), KeyId: params.KeyId}, nil
		},
		DecryptFn: func(_ context.Context, params *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
			return &kms.DecryptOutput{Plaintext: xor(params.CiphertextBlob), KeyId: params.KeyId}, nil
		},
	}
}
