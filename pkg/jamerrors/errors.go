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

// Package jamerrors defines the closed set of error kinds JamAI's core
// components surface, independent of any HTTP framework. The thin REST
// routers (out of scope here) are responsible for mapping a Kind to a
// status code using HTTPStatus.
package jamerrors

import (
	"errors"
	"fmt"
)

// Kind is a canonical error category surfaced by the routing and
// generative-table-execution layers.
type Kind string

// Error kinds.
const (
	BadInput             Kind = "bad_input"
	Unauthenticated       Kind = "unauthenticated"
	Forbidden             Kind = "forbidden"
	ResourceNotFound      Kind = "resource_not_found"
	ResourceExists        Kind = "resource_exists"
	InsufficientCredits   Kind = "insufficient_credits"
	ContextOverflow       Kind = "context_overflow"
	ProviderAuth          Kind = "provider_auth"
	ProviderRateLimit     Kind = "provider_rate_limit"
	ProviderUnavailable   Kind = "provider_unavailable"
	NoAvailableDeployment Kind = "no_available_deployment"
	Unexpected            Kind = "unexpected"
)

// HTTPStatus returns the HTTP status code a REST shim should use for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadInput, ContextOverflow:
		return 400
	case Unauthenticated:
		return 401
	case Forbidden, InsufficientCredits:
		return 403
	case ResourceNotFound:
		return 404
	case ResourceExists:
		return 409
	case ProviderAuth, ProviderRateLimit, ProviderUnavailable, NoAvailableDeployment:
		return 502
	default:
		return 500
	}
}

// Code returns the OpenAI-compatible machine-readable code for kinds that
// have one, or "" otherwise.
func (k Kind) Code() string {
	if k == ContextOverflow {
		return "context_length_exceeded"
	}
	return ""
}

// Error is a Kind-tagged error carrying a human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and Unexpected otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Is reports whether err's kind equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
