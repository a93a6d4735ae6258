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

// Package events decodes the dataset change events announced by the metadata
// service and applies them to the local dataset projection.
package events

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/genomics-archive/wps/pkg/appctx"
	"github.com/genomics-archive/wps/pkg/workpackage"
)

// Projection is the part of the work package manager fed by dataset events.
type Projection interface {
	UpsertDataset(ctx context.Context, dataset *workpackage.Dataset) error
	DeleteDataset(ctx context.Context, datasetID string) error
}

// upstream wire format; field names follow the metadata service
type datasetOverviewPayload struct {
	Accession   string `json:"accession"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Stage       string `json:"stage"`
	Files       []struct {
		Accession     string `json:"accession"`
		FileExtension string `json:"file_extension"`
	} `json:"files"`
}

type datasetIDPayload struct {
	Accession string `json:"accession"`
}

// Handler dispatches dataset change events to the projection. Handling is
// idempotent: re-delivery of an event yields the same projection state.
type Handler struct {
	upsertionType string
	deletionType  string
	projection    Projection
}

// NewHandler creates a Handler for the given event type names.
func NewHandler(upsertionType, deletionType string, projection Projection) *Handler {
	return &Handler{
		upsertionType: upsertionType,
		deletionType:  deletionType,
		projection:    projection,
	}
}

// Handle processes a single event. Events of unknown type or with a stage
// that maps to no work type are ignored. A returned error signals the
// subscriber to retry or dead-letter the event per its configuration.
func (h *Handler) Handle(ctx context.Context, eventType string, payload []byte) error {
	log := appctx.GetLogger(ctx)
	switch eventType {
	case h.upsertionType:
		return h.handleUpsertion(ctx, payload)
	case h.deletionType:
		return h.handleDeletion(ctx, payload)
	}
	log.Debug().Str("type", eventType).Msg("ignoring event of unknown type")
	return nil
}

func (h *Handler) handleUpsertion(ctx context.Context, payload []byte) error {
	log := appctx.GetLogger(ctx)

	decoded := datasetOverviewPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return errors.Wrap(err, "events: error decoding dataset overview")
	}

	stage, err := workpackage.ParseWorkType(decoded.Stage)
	if err != nil {
		// the stage does not correspond to a work type
		log.Info().Str("dataset", decoded.Accession).Str("stage", decoded.Stage).
			Msg("ignoring dataset event with unknown stage")
		return nil
	}

	files := make([]workpackage.DatasetFile, 0, len(decoded.Files))
	for _, file := range decoded.Files {
		files = append(files, workpackage.DatasetFile{
			ID:        file.Accession,
			Extension: file.FileExtension,
		})
	}
	dataset := &workpackage.Dataset{
		ID:          decoded.Accession,
		Title:       decoded.Title,
		Description: decoded.Description,
		Stage:       stage,
		Files:       files,
	}
	if err := h.projection.UpsertDataset(ctx, dataset); err != nil {
		return errors.Wrap(err, "events: error upserting dataset")
	}
	log.Info().Str("dataset", dataset.ID).Int("files", len(files)).Msg("dataset registered")
	return nil
}

func (h *Handler) handleDeletion(ctx context.Context, payload []byte) error {
	log := appctx.GetLogger(ctx)

	decoded := datasetIDPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return errors.Wrap(err, "events: error decoding dataset id")
	}
	if err := h.projection.DeleteDataset(ctx, decoded.Accession); err != nil {
		return errors.Wrap(err, "events: error deleting dataset")
	}
	log.Info().Str("dataset", decoded.Accession).Msg("dataset deleted")
	return nil
}
