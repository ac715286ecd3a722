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

package runner

import (
	"context"

	gtypes "github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
)

// TableByID is implemented by a storage collaborator that can resolve a
// table definition from its ID alone (pkg/storage/memory and
// pkg/storage/postgres both provide one), without the project ID
// service.TableStore's own GetTable requires.
type TableByID interface {
	GetTableByID(ctx context.Context, tableID string) (*gtypes.Table, error)
}

// StoreTableLookup adapts a TableByID storage collaborator to
// TableLookup, ignoring orgID since the underlying lookup is already
// scoped to a single table ID.
type StoreTableLookup struct {
	store TableByID
}

// NewStoreTableLookup constructs a StoreTableLookup.
func NewStoreTableLookup(store TableByID) *StoreTableLookup {
	return &StoreTableLookup{store: store}
}

var _ TableLookup = (*StoreTableLookup)(nil)

// Table implements TableLookup.
func (l *StoreTableLookup) Table(ctx context.Context, _ string, tableID string) (*gtypes.Table, error) {
	return l.store.GetTableByID(ctx, tableID)
}
