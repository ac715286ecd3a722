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
	"errors"
	"net/http"
	"strings"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// ErrCapabilityNotSupported is returned when an adapter is asked to perform
// a capability it doesn't implement.
var ErrCapabilityNotSupported = errors.New("providers: capability not supported by this adapter")

// MapHTTPError translates a vendor HTTP status + response body into a
// canonical jamerrors.Kind. The adapter itself never retries; that's the
// Router's job.
func MapHTTPError(statusCode int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case statusCode == http.StatusBadRequest && looksLikeContextOverflow(lower):
		return jamerrors.New(jamerrors.ContextOverflow, "provider rejected request: context length exceeded")
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return jamerrors.New(jamerrors.ProviderAuth, "provider authentication failed (status %d)", statusCode)
	case statusCode == http.StatusTooManyRequests:
		return jamerrors.New(jamerrors.ProviderRateLimit, "provider rate limit exceeded (status %d)", statusCode)
	case statusCode >= 500:
		return jamerrors.New(jamerrors.ProviderUnavailable, "provider server error (status %d)", statusCode)
	case statusCode >= 400:
		return jamerrors.New(jamerrors.ProviderUnavailable, "provider request error (status %d): %s", statusCode, body)
	default:
		return nil
	}
}

func looksLikeContextOverflow(lowerBody string) bool {
	for _, marker := range []string{"context length", "context_length_exceeded", "maximum context", "too many tokens", "reduce the length"} {
		if strings.Contains(lowerBody, marker) {
			return true
		}
	}
	return false
}

// MapTransportError translates a network-level error (timeout, connection
// refused, context deadline) into ProviderUnavailable.
func MapTransportError(err error) error {
	if err == nil {
		return nil
	}
	return jamerrors.Wrap(jamerrors.ProviderUnavailable, err, "provider call failed")
}
