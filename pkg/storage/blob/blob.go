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

// Package blob abstracts raw object storage for uploaded file columns
// (image/audio/document cells) across S3, GCS, and Azure Blob, keyed as
// raw/{org}/{project}/{uuid}/{filename}.
package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("blob: object not found")

// Store abstracts raw object I/O across cloud storage backends.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Key builds the raw/{org}/{project}/{uuid}/{filename} object key used
// for every uploaded file cell.
func Key(orgID, projectID, uuid, filename string) string {
	return fmt.Sprintf("raw/%s/%s/%s/%s", orgID, projectID, uuid, filename)
}
