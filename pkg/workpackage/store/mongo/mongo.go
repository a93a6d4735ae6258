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

// Package mongo provides store drivers backed by a MongoDB document store.
package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/genomics-archive/wps/pkg/errtypes"
	"github.com/genomics-archive/wps/pkg/workpackage"
)

// Config holds the connection parameters for the document store.
type Config struct {
	DSN     string
	Timeout time.Duration
	DBName  string
}

// Client wraps the driver connection shared by the store drivers.
type Client struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Connect establishes the connection to the document store and verifies it
// with a ping.
func Connect(ctx context.Context, c *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.DSN))
	if err != nil {
		return nil, errors.Wrap(err, "mongo: error connecting")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo: error pinging server")
	}
	return &Client{
		client:  client,
		db:      client.Database(c.DBName),
		timeout: c.Timeout,
	}, nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// DatasetStore is a workpackage.DatasetStore backed by a document collection
// keyed by dataset id.
type DatasetStore struct {
	client *Client
	coll   *mongo.Collection
}

// NewDatasetStore returns a dataset store using the given collection.
func NewDatasetStore(client *Client, collection string) *DatasetStore {
	return &DatasetStore{client: client, coll: client.db.Collection(collection)}
}

// Upsert unconditionally replaces the whole dataset document.
func (s *DatasetStore) Upsert(ctx context.Context, dataset *workpackage.Dataset) error {
	ctx, cancel := s.client.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": dataset.ID}, dataset,
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "mongo: error upserting dataset")
	}
	return nil
}

// Delete removes the dataset document. Missing documents are not an error.
func (s *DatasetStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.client.withTimeout(ctx)
	defer cancel()
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "mongo: error deleting dataset")
	}
	return nil
}

// Get returns the dataset or an errtypes.NotFound error.
func (s *DatasetStore) Get(ctx context.Context, id string) (*workpackage.Dataset, error) {
	ctx, cancel := s.client.withTimeout(ctx)
	defer cancel()
	dataset := &workpackage.Dataset{}
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(dataset)
	if err == mongo.ErrNoDocuments {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "mongo: error reading dataset")
	}
	return dataset, nil
}

// Store is a workpackage.Store backed by a document collection keyed by work
// package id.
type Store struct {
	client *Client
	coll   *mongo.Collection
}

// NewStore returns a work package store using the given collection.
func NewStore(client *Client, collection string) *Store {
	return &Store{client: client, coll: client.db.Collection(collection)}
}

// Insert stores the work package document.
func (s *Store) Insert(ctx context.Context, wp *workpackage.WorkPackage) error {
	ctx, cancel := s.client.withTimeout(ctx)
	defer cancel()
	if _, err := s.coll.InsertOne(ctx, wp); err != nil {
		return errors.Wrap(err, "mongo: error inserting work package")
	}
	return nil
}

// GetByID returns the work package or an errtypes.NotFound error.
func (s *Store) GetByID(ctx context.Context, id string) (*workpackage.WorkPackage, error) {
	ctx, cancel := s.client.withTimeout(ctx)
	defer cancel()
	wp := &workpackage.WorkPackage{}
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(wp)
	if err == mongo.ErrNoDocuments {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "mongo: error reading work package")
	}
	return wp, nil
}
