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

package jamerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		BadInput:             400,
		ContextOverflow:      400,
		Unauthenticated:      401,
		Forbidden:            403,
		InsufficientCredits:  403,
		ResourceNotFound:     404,
		ResourceExists:       409,
		ProviderAuth:         502,
		NoAvailableDeployment: 502,
		Unexpected:           500,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), "kind=%s", kind)
	}
}

func TestContextOverflowCode(t *testing.T) {
	assert.Equal(t, "context_length_exceeded", ContextOverflow.Code())
	assert.Equal(t, "", BadInput.Code())
}

func TestWrapAndKindOf(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ProviderUnavailable, cause, "deployment %s failed", "d1")
	assert.Equal(t, ProviderUnavailable, KindOf(err))
	assert.True(t, Is(err, ProviderUnavailable))
	assert.ErrorIs(t, err, cause)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Unexpected, KindOf(errors.New("plain")))
}
