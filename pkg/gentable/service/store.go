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

// Package service implements C9: schema CRUD and gen-config validation,
// row listing with filter/search/pagination, and CSV/Parquet
// import-export, on top of a caller-supplied collaborator store.
package service

import (
	"context"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
)

// TableStore persists table schemas. pkg/storage/postgres and
// pkg/storage/memory each provide one implementation.
type TableStore interface {
	GetTable(ctx context.Context, projectID, tableID string) (*types.Table, error)
	PutTable(ctx context.Context, table *types.Table) error
	DeleteTable(ctx context.Context, projectID, tableID string) error
}

// RowStore persists a table's rows.
type RowStore interface {
	ListRows(ctx context.Context, tableID string) ([]*types.Row, error)
	PutRows(ctx context.Context, tableID string, rows []*types.Row) error
	DeleteRows(ctx context.Context, tableID string, rowIDs []string) error
}

// ModelExists reports whether a model ID is a valid, resolvable model
// for the given organization; the service uses it to validate
// gen_config.model / embedding_model references without depending
// directly on pkg/modelregistry.
type ModelExists interface {
	Exists(ctx context.Context, orgID, modelID string) bool
}
