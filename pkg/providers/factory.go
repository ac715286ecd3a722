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

package providers

import (
	"context"
	"fmt"
	"net/http"
)

// Credentials carries whatever a vendor's adapter needs to authenticate.
// Most vendors use APIKey alone; Bedrock additionally needs a Region to
// resolve its SigV4 credential chain.
type Credentials struct {
	APIKey string
	Region string
}

// Build constructs the Adapter for the given vendor kind. The returned
// value satisfies whichever of ChatAdapter/EmbedAdapter/RerankAdapter that
// vendor actually supports; callers type-assert for the capability they
// need.
func Build(ctx context.Context, kind Kind, creds Credentials, httpClient *http.Client) (Adapter, error) {
	switch kind {
	case KindOpenAI:
		return NewOpenAIAdapter(creds.APIKey, httpClient), nil
	case KindAnthropic:
		return NewAnthropicAdapter(creds.APIKey, httpClient), nil
	case KindGemini:
		return NewGeminiAdapter(creds.APIKey, httpClient), nil
	case KindCohere:
		return NewCohereAdapter(creds.APIKey, httpClient), nil
	case KindBedrock:
		if creds.Region == "" {
			return nil, fmt.Errorf("providers: bedrock adapter requires a region")
		}
		return NewBedrockAdapter(ctx, creds.Region, httpClient)
	case KindAzure:
		return NewAzureAdapter(creds.APIKey, httpClient), nil
	case KindVLLM:
		return NewVLLMAdapter(creds.APIKey, httpClient), nil
	case KindOllama:
		return NewOllamaAdapter(httpClient), nil
	case KindInfinity:
		return NewInfinityAdapter(creds.APIKey, httpClient), nil
	case KindCustom:
		return NewCustomAdapter(creds.APIKey, httpClient), nil
	default:
		return nil, fmt.Errorf("providers: unknown vendor kind %q", kind)
	}
}

// AsChatAdapter type-asserts for the chat capability, returning
// ErrCapabilityNotSupported if the vendor doesn't implement it.
func AsChatAdapter(a Adapter) (ChatAdapter, error) {
	if c, ok := a.(ChatAdapter); ok {
		return c, nil
	}
	return nil, ErrCapabilityNotSupported
}

// AsEmbedAdapter type-asserts for the embed capability.
func AsEmbedAdapter(a Adapter) (EmbedAdapter, error) {
	if e, ok := a.(EmbedAdapter); ok {
		return e, nil
	}
	return nil, ErrCapabilityNotSupported
}

// AsRerankAdapter type-asserts for the rerank capability.
func AsRerankAdapter(a Adapter) (RerankAdapter, error) {
	if r, ok := a.(RerankAdapter); ok {
		return r, nil
	}
	return nil, ErrCapabilityNotSupported
}
