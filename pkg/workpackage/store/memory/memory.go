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

// Package memory provides in-memory store drivers, used in tests.
package memory

import (
	"context"
	"sync"

	"github.com/genomics-archive/wps/pkg/errtypes"
	"github.com/genomics-archive/wps/pkg/workpackage"
)

// DatasetStore is an in-memory workpackage.DatasetStore.
type DatasetStore struct {
	mu       sync.RWMutex
	datasets map[string]*workpackage.Dataset
}

// NewDatasetStore returns an empty in-memory dataset store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{datasets: map[string]*workpackage.Dataset{}}
}

// Upsert replaces the dataset with the given one.
func (s *DatasetStore) Upsert(_ context.Context, dataset *workpackage.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *dataset
	s.datasets[dataset.ID] = &copied
	return nil
}

// Delete removes the dataset, ignoring missing ids.
func (s *DatasetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasets, id)
	return nil
}

// Get returns the dataset or an errtypes.NotFound error.
func (s *DatasetStore) Get(_ context.Context, id string) (*workpackage.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dataset, ok := s.datasets[id]
	if !ok {
		return nil, errtypes.NotFound(id)
	}
	copied := *dataset
	return &copied, nil
}

// Store is an in-memory workpackage.Store.
type Store struct {
	mu       sync.RWMutex
	packages map[string]*workpackage.WorkPackage
}

// NewStore returns an empty in-memory work package store.
func NewStore() *Store {
	return &Store{packages: map[string]*workpackage.WorkPackage{}}
}

// Insert stores the work package.
func (s *Store) Insert(_ context.Context, wp *workpackage.WorkPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *wp
	s.packages[wp.ID] = &copied
	return nil
}

// GetByID returns the work package or an errtypes.NotFound error.
func (s *Store) GetByID(_ context.Context, id string) (*workpackage.WorkPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wp, ok := s.packages[id]
	if !ok {
		return nil, errtypes.NotFound(id)
	}
	copied := *wp
	return &copied, nil
}
