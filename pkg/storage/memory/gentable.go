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

// Package memory provides in-memory reference implementations of every
// storage collaborator interface (table/row stores, the blob store),
// used by unit tests throughout the module and as the IS_OSS default
// when no external database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// TableStore is a thread-safe in-memory implementation of
// service.TableStore, keyed by project ID then table ID.
type TableStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]*types.Table
}

// NewTableStore constructs an empty TableStore.
func NewTableStore() *TableStore {
	return &TableStore{tables: make(map[string]map[string]*types.Table)}
}

func (s *TableStore) GetTable(_ context.Context, projectID, tableID string) (*types.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proj, ok := s.tables[projectID]
	if !ok {
		return nil, jamerrors.New(jamerrors.ResourceNotFound, "table %q not found", tableID)
	}
	t, ok := proj[tableID]
	if !ok {
		return nil, jamerrors.New(jamerrors.ResourceNotFound, "table %q not found", tableID)
	}
	cp := *t
	cp.Columns = append([]types.ColumnSchema(nil), t.Columns...)
	return &cp, nil
}

func (s *TableStore) PutTable(_ context.Context, table *types.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, ok := s.tables[table.ProjectID]
	if !ok {
		proj = make(map[string]*types.Table)
		s.tables[table.ProjectID] = proj
	}
	cp := *table
	cp.Columns = append([]types.ColumnSchema(nil), table.Columns...)
	proj[table.ID] = &cp
	return nil
}

func (s *TableStore) DeleteTable(_ context.Context, projectID, tableID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if proj, ok := s.tables[projectID]; ok {
		delete(proj, tableID)
	}
	return nil
}

// GetTableByID looks up a table across every project by table ID alone,
// for collaborators (e.g. pkg/gentable/runner) that only ever see an org
// and table ID, never the owning project. Table IDs are unique across
// the whole store, so a project-by-project scan always resolves to at
// most one match.
func (s *TableStore) GetTableByID(_ context.Context, tableID string) (*types.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, proj := range s.tables {
		if t, ok := proj[tableID]; ok {
			cp := *t
			cp.Columns = append([]types.ColumnSchema(nil), t.Columns...)
			return &cp, nil
		}
	}
	return nil, jamerrors.New(jamerrors.ResourceNotFound, "table %q not found", tableID)
}

// RowStore is a thread-safe in-memory implementation of
// service.RowStore, keyed by table ID.
type RowStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]*types.Row
}

// NewRowStore constructs an empty RowStore.
func NewRowStore() *RowStore {
	return &RowStore{rows: make(map[string]map[string]*types.Row)}
}

func (s *RowStore) ListRows(_ context.Context, tableID string) ([]*types.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.rows[tableID]
	out := make([]*types.Row, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	return out, nil
}

func (s *RowStore) PutRows(_ context.Context, tableID string, rows []*types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.rows[tableID]
	if !ok {
		byID = make(map[string]*types.Row)
		s.rows[tableID] = byID
	}
	for _, r := range rows {
		byID[r.ID] = r
	}
	return nil
}

func (s *RowStore) DeleteRows(_ context.Context, tableID string, rowIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.rows[tableID]
	if !ok {
		return nil
	}
	for _, id := range rowIDs {
		delete(byID, id)
	}
	return nil
}

// ModelRegistry implements service.ModelExists over a fixed set of known
// model IDs, ignoring the org ID.
type ModelRegistry struct {
	Known map[string]bool
}

func (m ModelRegistry) Exists(_ context.Context, _ string, modelID string) bool {
	return m.Known[modelID]
}
