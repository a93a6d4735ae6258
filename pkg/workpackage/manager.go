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

// Package workpackage contains the work package domain model and the manager
// orchestrating token issuance and access control.
package workpackage

import (
	"context"
	"crypto/subtle"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/genomics-archive/wps/pkg/appctx"
	"github.com/genomics-archive/wps/pkg/crypt4gh"
	"github.com/genomics-archive/wps/pkg/errtypes"
	"github.com/genomics-archive/wps/pkg/token"
)

// work order tokens are meant to be used right away
const workOrderTokenValidity = 30 * time.Second

// Manager creates work packages, authenticates access tokens presented for
// them and mints the per-file work order tokens handed to the data plane.
type Manager struct {
	signer   *token.Signer
	verifier IdentityVerifier
	datasets DatasetStore
	store    Store
	access   AccessOracle
	validFor time.Duration
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager wires the manager with its collaborators. Work packages stay
// valid for the given number of days.
func NewManager(signer *token.Signer, verifier IdentityVerifier, datasets DatasetStore,
	store Store, access AccessOracle, validDays int, opts ...Option) *Manager {
	m := &Manager{
		signer:   signer,
		verifier: verifier,
		datasets: datasets,
		store:    store,
		access:   access,
		validFor: time.Duration(validDays) * 24 * time.Hour,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create authenticates the caller through the internal assertion, authorizes
// the requested dataset access and persists a new work package. The returned
// access token is encrypted with the user's public Crypt4GH key, and only
// its hash is stored.
func (m *Manager) Create(ctx context.Context, data *CreationData, assertion string) (*CreationResponse, error) {
	log := appctx.GetLogger(ctx)

	user, err := m.verifier.Verify(assertion)
	if err != nil {
		return nil, err
	}

	workType, err := ParseWorkType(data.Type)
	if err != nil {
		return nil, err
	}

	userKey, err := crypt4gh.ValidatePublicKey(data.UserPublicCrypt4ghKey)
	if err != nil {
		return nil, err
	}

	dataset, err := m.datasets.Get(ctx, data.DatasetID)
	if err != nil {
		// do not leak whether the dataset exists
		log.Debug().Err(err).Str("dataset", data.DatasetID).Msg("cannot determine dataset files")
		return nil, errtypes.PermissionDenied("cannot determine dataset files")
	}

	allowed, err := m.access.Check(ctx, user.ID, dataset.ID, workType)
	if err != nil {
		return nil, errtypes.InternalError("error checking dataset access: " + err.Error())
	}
	if !allowed {
		log.Info().Str("user", user.ID).Str("dataset", dataset.ID).Msg("missing dataset access permission")
		return nil, errtypes.PermissionDenied("missing dataset access permission")
	}

	fileIDs := selectFiles(dataset, data.FileIDs)
	if len(fileIDs) == 0 {
		return nil, errtypes.PermissionDenied("no existing files have been specified")
	}

	id := token.RandomTokenID()
	secret := token.RandomSecret()
	created := m.now().UTC()

	wp := &WorkPackage{
		ID:                    id,
		DatasetID:             dataset.ID,
		Type:                  workType,
		UserID:                user.ID,
		UserPublicCrypt4ghKey: userKey,
		FullUserName:          user.FullName(),
		Email:                 user.Email,
		FileIDs:               fileIDs,
		TokenHash:             token.Fingerprint(secret),
		Created:               created,
		Expires:               created.Add(m.validFor),
	}
	if err := m.store.Insert(ctx, wp); err != nil {
		return nil, errtypes.InternalError("error storing work package: " + err.Error())
	}

	encrypted, err := crypt4gh.Encrypt([]byte(id+":"+secret), userKey)
	if err != nil {
		return nil, errtypes.InternalError("error encrypting access token: " + err.Error())
	}

	log.Info().Str("id", id).Str("user", user.ID).Str("dataset", dataset.ID).
		Str("type", string(workType)).Int("files", len(fileIDs)).Msg("work package created")
	return &CreationResponse{ID: id, Token: encrypted}, nil
}

// GetDetails returns the details of a work package to the holder of a valid
// access token. File extensions are looked up against the current dataset
// projection; if the dataset has been deleted since creation, the known file
// ids are still returned with empty extensions.
func (m *Manager) GetDetails(ctx context.Context, wpID, accessToken string) (*Details, error) {
	wp, err := m.authorize(ctx, wpID, accessToken)
	if err != nil {
		return nil, err
	}

	extensions := map[string]string{}
	if dataset, err := m.datasets.Get(ctx, wp.DatasetID); err == nil {
		for _, file := range dataset.Files {
			extensions[file.ID] = file.Extension
		}
	}

	files := make(map[string]string, len(wp.FileIDs))
	for _, fileID := range wp.FileIDs {
		files[fileID] = extensions[fileID]
	}
	return &Details{
		Type:    wp.Type,
		Files:   files,
		Created: wp.Created,
		Expires: wp.Expires,
	}, nil
}

// CreateWorkOrderToken mints a work order token for a single file of a work
// package: the claims are signed with the service key and encrypted with the
// user's public Crypt4GH key. The grant registration with the access oracle
// is best-effort.
func (m *Manager) CreateWorkOrderToken(ctx context.Context, wpID, fileID, accessToken string) (string, error) {
	log := appctx.GetLogger(ctx)

	wp, err := m.authorize(ctx, wpID, accessToken)
	if err != nil {
		return "", err
	}

	if !slices.Contains(wp.FileIDs, fileID) {
		log.Info().Str("id", wpID).Str("file", fileID).Msg("file is not contained in work package")
		return "", errtypes.PermissionDenied("file is not contained in work package")
	}

	now := m.now().UTC()
	claims := &WorkOrderClaims{
		Type:                  wp.Type,
		FileID:                fileID,
		UserID:                wp.UserID,
		UserPublicCrypt4ghKey: wp.UserPublicCrypt4ghKey,
		FullUserName:          wp.FullUserName,
		Email:                 wp.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(workOrderTokenValidity)),
		},
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errtypes.InternalError("error signing work order token: " + err.Error())
	}
	encrypted, err := crypt4gh.Encrypt([]byte(signed), wp.UserPublicCrypt4ghKey)
	if err != nil {
		return "", errtypes.InternalError("error encrypting work order token: " + err.Error())
	}

	if err := m.access.RegisterGrant(ctx, wp.UserID, fileID, wp.Expires); err != nil {
		log.Warn().Err(err).Str("user", wp.UserID).Str("file", fileID).Msg("could not register work order grant")
	}

	log.Info().Str("id", wpID).Str("file", fileID).Msg("work order token created")
	return encrypted, nil
}

// ListUserDatasets returns all datasets the given user may download. The
// caller must be the user in question.
func (m *Manager) ListUserDatasets(ctx context.Context, userID, assertion string) ([]*Dataset, error) {
	user, err := m.verifier.Verify(assertion)
	if err != nil {
		return nil, err
	}
	if user.ID != userID {
		return nil, errtypes.PermissionDenied("not authorized for this user")
	}

	ids, err := m.access.ListDatasets(ctx, userID)
	if err != nil {
		return nil, errtypes.InternalError("error listing accessible datasets: " + err.Error())
	}

	log := appctx.GetLogger(ctx)
	datasets := []*Dataset{}
	for _, id := range ids {
		dataset, err := m.datasets.Get(ctx, id)
		if err != nil {
			log.Debug().Str("dataset", id).Msg("accessible dataset not found in projection")
			continue
		}
		datasets = append(datasets, dataset)
	}
	return datasets, nil
}

// UpsertDataset applies a dataset upsertion event to the projection.
func (m *Manager) UpsertDataset(ctx context.Context, dataset *Dataset) error {
	return m.datasets.Upsert(ctx, dataset)
}

// DeleteDataset applies a dataset deletion event to the projection.
func (m *Manager) DeleteDataset(ctx context.Context, datasetID string) error {
	return m.datasets.Delete(ctx, datasetID)
}

// authorize reconstructs the work package from a presented access token.
// All failure modes collapse into the same permission denied error so that
// callers cannot distinguish them.
func (m *Manager) authorize(ctx context.Context, wpID, accessToken string) (*WorkPackage, error) {
	log := appctx.GetLogger(ctx)
	denied := errtypes.PermissionDenied("work package access denied")

	id, secret, ok := strings.Cut(accessToken, ":")
	if !ok || id != wpID {
		log.Debug().Str("id", wpID).Msg("access token does not match work package")
		return nil, denied
	}

	wp, err := m.store.GetByID(ctx, wpID)
	if err != nil {
		if _, ok := err.(errtypes.IsNotFound); !ok {
			return nil, errtypes.InternalError("error reading work package: " + err.Error())
		}
		log.Debug().Str("id", wpID).Msg("work package not found")
		return nil, denied
	}

	fingerprint := token.Fingerprint(secret)
	if subtle.ConstantTimeCompare([]byte(fingerprint), []byte(wp.TokenHash)) != 1 {
		log.Debug().Str("id", wpID).Msg("invalid work package access token")
		return nil, denied
	}

	if m.now().After(wp.Expires) {
		log.Debug().Str("id", wpID).Msg("work package has expired")
		return nil, denied
	}

	// download access may have been revoked since the package was created
	if wp.Type == WorkTypeDownload {
		allowed, err := m.access.Check(ctx, wp.UserID, wp.DatasetID, wp.Type)
		if err != nil {
			return nil, errtypes.InternalError("error checking dataset access: " + err.Error())
		}
		if !allowed {
			log.Info().Str("id", wpID).Str("user", wp.UserID).Msg("access has been revoked")
			return nil, denied
		}
	}

	return wp, nil
}

// selectFiles resolves the requested file subset against the dataset. A nil
// request selects all files in dataset order; otherwise the caller's order
// is preserved, duplicates and unknown ids are dropped.
func selectFiles(dataset *Dataset, requested []string) []string {
	if requested == nil {
		ids := make([]string, 0, len(dataset.Files))
		for _, file := range dataset.Files {
			ids = append(ids, file.ID)
		}
		return ids
	}

	known := make(map[string]bool, len(dataset.Files))
	for _, file := range dataset.Files {
		known[file.ID] = true
	}
	ids := make([]string, 0, len(requested))
	seen := map[string]bool{}
	for _, id := range requested {
		if known[id] && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	return ids
}
