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

// Package idgen centralizes ID generation for rows and analytics events.
package idgen

import "github.com/google/uuid"

// NewRowID returns a UUIDv7 string, used for Row.ID and for every
// analytics event id, so the flusher's upserts stay idempotent across
// retries.
func NewRowID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the OS entropy source is broken; fall
		// back to a random v4 rather than panicking mid-request.
		return uuid.NewString()
	}
	return id.String()
}

// NewEventID returns a UUIDv7 string for analytics event identifiers.
func NewEventID() string {
	return NewRowID()
}
