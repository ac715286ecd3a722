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

// ProviderType selects which backend wraps the data encryption key.
type ProviderType string

const (
	ProviderGCPKMS        ProviderType = "gcp-kms"
	ProviderAWSKMS        ProviderType = "aws-kms"
	ProviderAzureKeyVault ProviderType = "azure-keyvault"
	// ProviderLocal wraps the DEK with a static key derived from
	// ENCRYPTION_KEY instead of a cloud KMS. Used for OSS / self-hosted
	// deployments that have no KMS to reach.
	ProviderLocal ProviderType = "local"
)

// Config selects and parameterizes a Provider.
type Config struct {
	ProviderType ProviderType

	// KeyID is the KMS key resource name / ARN / Key Vault key name,
	// unused by ProviderLocal.
	KeyID string
	// VaultURL is the Azure Key Vault base URL, unused by other types.
	VaultURL string
	// Credentials holds provider-specific values: "region",
	// "access-key-id", "secret-access-key" for AWS; "credentials-json"
	// for GCP; "tenant-id", "client-id", "client-secret" for Azure.
	Credentials map[string]string

	// LocalKey is the raw key material for ProviderLocal, normally
	// decoded from the ENCRYPTION_KEY environment variable.
	LocalKey []byte
}
