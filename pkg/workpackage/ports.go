// Copyright 2021-2026 The Work Package Service Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workpackage

import (
	"context"
	"time"

	"github.com/genomics-archive/wps/pkg/auth"
)

// DatasetStore persists the dataset projection.
type DatasetStore interface {
	// Upsert unconditionally replaces the dataset with the given one.
	Upsert(ctx context.Context, dataset *Dataset) error
	// Delete removes the dataset. Deleting a missing dataset is not an error.
	Delete(ctx context.Context, id string) error
	// Get returns the dataset or an errtypes.NotFound error.
	Get(ctx context.Context, id string) (*Dataset, error)
}

// Store persists work packages. Records are never mutated after insertion.
type Store interface {
	Insert(ctx context.Context, wp *WorkPackage) error
	// GetByID returns the work package or an errtypes.NotFound error.
	GetByID(ctx context.Context, id string) (*WorkPackage, error)
}

// AccessOracle is the external service deciding dataset access.
type AccessOracle interface {
	// Check reports whether the user may perform work of the given type on
	// the dataset.
	Check(ctx context.Context, userID, datasetID string, workType WorkType) (bool, error)
	// ListDatasets returns the ids of all datasets the user may download.
	ListDatasets(ctx context.Context, userID string) ([]string, error)
	// RegisterGrant notifies the oracle that a work order token was minted
	// for the given file.
	RegisterGrant(ctx context.Context, userID, fileID string, validUntil time.Time) error
}

// IdentityVerifier validates internal bearer assertions.
type IdentityVerifier interface {
	Verify(assertion string) (*auth.UserContext, error)
}
