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

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// awsKMSClient abstracts the AWS KMS calls the provider needs.
type awsKMSClient interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type awsKMSProvider struct {
	client awsKMSClient
	keyID  string
}

func newAWSKMSProvider(cfg Config) (*awsKMSProvider, error) {
	if cfg.KeyID == "" {
		return nil, fmt.Errorf("aws-kms: key ID is required")
	}
	region := cfg.Credentials["region"]
	if region == "" {
		return nil, fmt.Errorf("aws-kms: region is required")
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if ak, sk := cfg.Credentials["access-key-id"], cfg.Credentials["secret-access-key"]; ak != "" && sk != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}

	loaded, err := awscfg.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws-kms: failed to load AWS config: %w", err)
	}

	return &awsKMSProvider{client: kms.NewFromConfig(loaded), keyID: cfg.KeyID}, nil
}

func (p *awsKMSProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	genResp, err := p.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(p.keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, wrapFailure(ErrEncryptionFailed, "KMS GenerateDataKey", err)
	}

	nonce, ciphertext, err := aesGCMEncrypt(genResp.Plaintext, plaintext)
	if err != nil {
		return nil, err
	}

	return sealEnvelope(genResp.CiphertextBlob, nonce, ciphertext, "")
}

func (p *awsKMSProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	env, err := parseEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}

	decryptResp, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: env.WrappedDEK,
		KeyId:          aws.String(p.keyID),
	})
	if err != nil {
		return nil, wrapFailure(ErrDecryptionFailed, "KMS Decrypt", err)
	}

	return aesGCMDecrypt(decryptResp.Plaintext, env.Nonce, env.Ciphertext)
}

func (p *awsKMSProvider) Close() error { return nil }

// newAWSKMSProviderWithClient injects a client for testing.
func newAWSKMSProviderWithClient(client awsKMSClient, keyID string) *awsKMSProvider {
	return &awsKMSProvider{client: client, keyID: keyID}
}
