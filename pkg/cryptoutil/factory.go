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

import "fmt"

// NewProvider constructs the Provider named by cfg.ProviderType.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.ProviderType {
	case ProviderGCPKMS:
		return newGCPKMSProvider(cfg)
	case ProviderAWSKMS:
		return newAWSKMSProvider(cfg)
	case ProviderAzureKeyVault:
		return newAzureKeyVaultProvider(cfg)
	case ProviderLocal:
		return newLocalProvider(cfg)
	default:
		return nil, fmt.Errorf("cryptoutil: unknown provider type %q", cfg.ProviderType)
	}
}
