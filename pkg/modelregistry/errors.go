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

package modelregistry

import "github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"

func errInvalidModelID(id string) error {
	return jamerrors.New(jamerrors.BadInput, "model id %q must have the form {provider}/{name}", id)
}

func errEmbedMissingDimensions(id string) error {
	return jamerrors.New(jamerrors.BadInput, "embedding model %q must declare embedding_size or embedding_dimensions", id)
}

func errEllmIDMismatch(id string) error {
	return jamerrors.New(jamerrors.BadInput, "model %q is owned_by=ellm but its id does not start with ellm/", id)
}

func errModelNotFound(id string) error {
	return jamerrors.New(jamerrors.ResourceNotFound, "model %q not found", id)
}

func errModelBlocked(id, orgID string) error {
	return jamerrors.New(jamerrors.Forbidden, "model %q is not available to org %q", id, orgID)
}

func errNoEligibleModel(caps []Capability) error {
	return jamerrors.New(jamerrors.ResourceNotFound, "no model exposes the required capabilities: %v", caps)
}
