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

package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/cryptoutil"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

// OrgKeyStore supplies the encrypted external_keys blob an org has on
// record, as sealed by pkg/cryptoutil. A Resolver decrypts it on demand;
// ok is false when the org has never set any keys of its own.
type OrgKeyStore interface {
	EncryptedExternalKeys(ctx context.Context, orgID string) (blob []byte, ok bool, err error)
}

// PlatformCredentials are JamAI's own vendor keys, used whenever an org
// has not supplied an external_keys entry for a deployment's provider
// (in particular for ellm-owned deployments, which only the platform can
// authenticate against).
type PlatformCredentials struct {
	APIKeys       map[providers.Kind]string
	BedrockRegion string
}

type cachedKeys struct {
	keys      map[string]string
	expiresAt time.Time
}

// Resolver is the production AdapterResolver: it resolves a Deployment's
// vendor kind, picks between an org's own external key and the platform's
// key for that provider, and builds the matching providers.Adapter.
type Resolver struct {
	orgKeys    OrgKeyStore
	crypto     cryptoutil.Provider
	platform   PlatformCredentials
	httpClient *http.Client
	cacheTTL   time.Duration

	mu    sync.Mutex
	cache map[string]cachedKeys
}

// NewResolver constructs a Resolver. A nil httpClient defaults to
// http.DefaultClient. Decrypted external_keys are cached per org for
// cacheTTL to spare the KMS round trip on every provider call; pass zero
// to disable caching.
func NewResolver(orgKeys OrgKeyStore, crypto cryptoutil.Provider, platform PlatformCredentials, httpClient *http.Client, cacheTTL time.Duration) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Resolver{
		orgKeys:    orgKeys,
		crypto:     crypto,
		platform:   platform,
		httpClient: httpClient,
		cacheTTL:   cacheTTL,
		cache:      make(map[string]cachedKeys),
	}
}

var _ AdapterResolver = (*Resolver)(nil)

// Resolve implements AdapterResolver.
func (res *Resolver) Resolve(ctx context.Context, dep modelregistry.Deployment) (providers.Adapter, error) {
	kind := providers.Kind(dep.Provider)

	creds := providers.Credentials{}

	orgID, _ := OrgIDFromContext(ctx)
	key, ok, err := res.externalKey(ctx, orgID, dep.Provider)
	if err != nil {
		return nil, fmt.Errorf("router: resolve external key for provider %q: %w", dep.Provider, err)
	}
	if ok {
		creds.APIKey = key
	} else {
		creds.APIKey = res.platform.APIKeys[kind]
	}

	if kind == providers.KindBedrock {
		creds.Region = dep.Region
		if creds.Region == "" {
			creds.Region = res.platform.BedrockRegion
		}
	}

	return providers.Build(ctx, kind, creds, res.httpClient)
}

// externalKey returns orgID's external_keys entry for provider, if any.
func (res *Resolver) externalKey(ctx context.Context, orgID, provider string) (string, bool, error) {
	if orgID == "" {
		return "", false, nil
	}
	keys, err := res.orgExternalKeys(ctx, orgID)
	if err != nil {
		return "", false, err
	}
	key, ok := keys[provider]
	return key, ok, nil
}

// orgExternalKeys returns orgID's decrypted external_keys map, serving
// from cache when the entry hasn't expired.
func (res *Resolver) orgExternalKeys(ctx context.Context, orgID string) (map[string]string, error) {
	res.mu.Lock()
	if entry, ok := res.cache[orgID]; ok && time.Now().Before(entry.expiresAt) {
		res.mu.Unlock()
		return entry.keys, nil
	}
	res.mu.Unlock()

	blob, ok, err := res.orgKeys.EncryptedExternalKeys(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load external_keys for org %q: %w", orgID, err)
	}
	if !ok {
		res.storeCache(orgID, nil)
		return nil, nil
	}

	plaintext, err := res.crypto.Decrypt(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("decrypt external_keys for org %q: %w", orgID, err)
	}
	var keys map[string]string
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, fmt.Errorf("unmarshal external_keys for org %q: %w", orgID, err)
	}

	res.storeCache(orgID, keys)
	return keys, nil
}

func (res *Resolver) storeCache(orgID string, keys map[string]string) {
	if res.cacheTTL <= 0 {
		return
	}
	res.mu.Lock()
	defer res.mu.Unlock()
	res.cache[orgID] = cachedKeys{keys: keys, expiresAt: time.Now().Add(res.cacheTTL)}
}
