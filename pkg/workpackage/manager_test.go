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

package workpackage_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/genomics-archive/wps/pkg/auth"
	"github.com/genomics-archive/wps/pkg/crypt4gh"
	"github.com/genomics-archive/wps/pkg/errtypes"
	"github.com/genomics-archive/wps/pkg/token"
	"github.com/genomics-archive/wps/pkg/workpackage"
	"github.com/genomics-archive/wps/pkg/workpackage/store/memory"
)

// test fixtures, do not use outside of tests
const (
	privateJWK = `{"crv": "P-256", "kty": "EC",` +
		` "x": "S0MhyDim0XM2WdDviR0aNBlcbADgyL1n9Zw9VEVK4p0",` +
		` "y": "HNmvhd9Fq12udDY-74cm_ebgkM-sP32PSaEWGg5BaKM",` +
		` "d": "DeXhM7pUbCfRaHckd2gACfLGSKyT8G41ayb5Qfx8Gvk"}`
	publicJWK = `{"crv": "P-256", "kty": "EC",` +
		` "x": "S0MhyDim0XM2WdDviR0aNBlcbADgyL1n9Zw9VEVK4p0",` +
		` "y": "HNmvhd9Fq12udDY-74cm_ebgkM-sP32PSaEWGg5BaKM"}`
)

type grant struct {
	userID     string
	fileID     string
	validUntil time.Time
}

type fakeOracle struct {
	allowed  map[string]bool
	err      error
	grantErr error
	datasets []string
	grants   []grant
}

func (o *fakeOracle) Check(_ context.Context, userID, datasetID string, workType workpackage.WorkType) (bool, error) {
	if o.err != nil {
		return false, o.err
	}
	return o.allowed[userID+"/"+datasetID+"/"+string(workType)], nil
}

func (o *fakeOracle) ListDatasets(_ context.Context, userID string) ([]string, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.datasets, nil
}

func (o *fakeOracle) RegisterGrant(_ context.Context, userID, fileID string, validUntil time.Time) error {
	if o.grantErr != nil {
		return o.grantErr
	}
	o.grants = append(o.grants, grant{userID, fileID, validUntil})
	return nil
}

type spyStore struct {
	*memory.Store
	inserts int
}

func (s *spyStore) Insert(ctx context.Context, wp *workpackage.WorkPackage) error {
	s.inserts++
	return s.Store.Insert(ctx, wp)
}

type fixture struct {
	manager  *workpackage.Manager
	datasets *memory.DatasetStore
	store    *spyStore
	oracle   *fakeOracle
	signer   *token.Signer

	userKey     string
	userPrivKey [chacha20poly1305.KeySize]byte
	assertion   string

	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signer, err := token.NewSigner(privateJWK)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(publicJWK, []string{"ES256"},
		[]string{"id", "name", "email", "iat", "exp"})
	require.NoError(t, err)

	userKey, userPrivKey, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)

	f := &fixture{
		datasets:    memory.NewDatasetStore(),
		store:       &spyStore{Store: memory.NewStore()},
		oracle:      &fakeOracle{allowed: map[string]bool{"u1/ds1/download": true}},
		signer:      signer,
		userKey:     userKey,
		userPrivKey: userPrivKey,
		now:         time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}
	f.manager = workpackage.NewManager(signer, verifier, f.datasets, f.store, f.oracle, 30,
		workpackage.WithClock(func() time.Time { return f.now }))

	require.NoError(t, f.datasets.Upsert(context.Background(), &workpackage.Dataset{
		ID:          "ds1",
		Title:       "A dataset",
		Description: "Sequencing data",
		Stage:       workpackage.WorkTypeDownload,
		Files: []workpackage.DatasetFile{
			{ID: "f1", Extension: ".txt"},
			{ID: "f2", Extension: ".csv"},
			{ID: "f3", Extension: ".json"},
		},
	}))

	iat := jwt.NewNumericDate(f.now)
	exp := jwt.NewNumericDate(f.now.Add(time.Hour))
	f.assertion, err = signer.Sign(jwt.MapClaims{
		"id": "u1", "name": "Ada Lovelace", "email": "ada@example.org",
		"iat": iat, "exp": exp,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) create(t *testing.T, data *workpackage.CreationData) (string, string) {
	t.Helper()
	res, err := f.manager.Create(context.Background(), data, f.assertion)
	require.NoError(t, err)

	decrypted, err := crypt4gh.Decrypt(res.Token, f.userPrivKey)
	require.NoError(t, err)
	return res.ID, string(decrypted)
}

func creationData(f *fixture) *workpackage.CreationData {
	return &workpackage.CreationData{
		DatasetID:             "ds1",
		Type:                  "download",
		UserPublicCrypt4ghKey: f.userKey,
	}
}

func TestCreateWithAllFiles(t *testing.T) {
	f := newFixture(t)
	id, accessToken := f.create(t, creationData(f))

	wpID, secret, ok := strings.Cut(accessToken, ":")
	require.True(t, ok)
	assert.Equal(t, id, wpID)

	wp, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2", "f3"}, wp.FileIDs)
	assert.Equal(t, token.Fingerprint(secret), wp.TokenHash)
	assert.Equal(t, "u1", wp.UserID)
	assert.Equal(t, "Ada Lovelace", wp.FullUserName)
	assert.Equal(t, f.now, wp.Created)
	assert.Equal(t, f.now.Add(30*24*time.Hour), wp.Expires)

	details, err := f.manager.GetDetails(context.Background(), id, accessToken)
	require.NoError(t, err)
	assert.Equal(t, workpackage.WorkTypeDownload, details.Type)
	assert.Equal(t, map[string]string{"f1": ".txt", "f2": ".csv", "f3": ".json"}, details.Files)
	assert.Equal(t, wp.Created, details.Created)
	assert.Equal(t, wp.Expires, details.Expires)
}

func TestCreateWithSubset(t *testing.T) {
	f := newFixture(t)
	data := creationData(f)
	data.FileIDs = []string{"f2", "f9", "f1", "f2"}
	id, _ := f.create(t, data)

	wp, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	// caller order is preserved, unknown ids and duplicates are dropped
	assert.Equal(t, []string{"f2", "f1"}, wp.FileIDs)
}

func TestCreateUploadWorkPackage(t *testing.T) {
	f := newFixture(t)
	f.oracle.allowed["u1/ds1/upload"] = true
	data := creationData(f)
	data.Type = "upload"
	id, accessToken := f.create(t, data)

	wp, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, workpackage.WorkTypeUpload, wp.Type)

	// upload packages are not re-checked against the download oracle
	f.oracle.allowed = map[string]bool{}
	details, err := f.manager.GetDetails(context.Background(), id, accessToken)
	require.NoError(t, err)
	assert.Equal(t, workpackage.WorkTypeUpload, details.Type)
}

func TestCreateWithUnknownWorkType(t *testing.T) {
	f := newFixture(t)
	data := creationData(f)
	data.Type = "archive"
	_, err := f.manager.Create(context.Background(), data, f.assertion)
	require.Error(t, err)
	var badRequest errtypes.IsBadRequest
	assert.ErrorAs(t, err, &badRequest)
}

func TestCreateWithEmptyIntersection(t *testing.T) {
	f := newFixture(t)
	data := creationData(f)
	data.FileIDs = []string{"f9"}
	_, err := f.manager.Create(context.Background(), data, f.assertion)
	requirePermissionDenied(t, err)
	assert.Zero(t, f.store.inserts)
}

func TestCreateUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.oracle.allowed = map[string]bool{}
	_, err := f.manager.Create(context.Background(), creationData(f), f.assertion)
	requirePermissionDenied(t, err)
	assert.Zero(t, f.store.inserts)
}

func TestCreateUnknownDataset(t *testing.T) {
	f := newFixture(t)
	data := creationData(f)
	data.DatasetID = "ds9"
	_, err := f.manager.Create(context.Background(), data, f.assertion)
	requirePermissionDenied(t, err)
}

func TestCreateWithoutAssertion(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Create(context.Background(), creationData(f), "not.a.token")
	require.Error(t, err)
	var invalid errtypes.IsInvalidCredentials
	assert.ErrorAs(t, err, &invalid)
}

func TestCreateWithInvalidUserKey(t *testing.T) {
	f := newFixture(t)
	data := creationData(f)
	data.UserPublicCrypt4ghKey = "no key at all"
	_, err := f.manager.Create(context.Background(), data, f.assertion)
	require.Error(t, err)
	var badRequest errtypes.IsBadRequest
	assert.ErrorAs(t, err, &badRequest)
}

func TestCreateOracleFailure(t *testing.T) {
	f := newFixture(t)
	f.oracle.err = assert.AnError
	_, err := f.manager.Create(context.Background(), creationData(f), f.assertion)
	require.Error(t, err)
	var internal errtypes.IsInternalError
	assert.ErrorAs(t, err, &internal)
}

func TestGetDetailsWithWrongToken(t *testing.T) {
	f := newFixture(t)
	id, accessToken := f.create(t, creationData(f))

	_, secret, _ := strings.Cut(accessToken, ":")
	tests := map[string]struct {
		id    string
		token string
	}{
		"id mismatch":    {"other-id", accessToken},
		"foreign prefix": {id, "other-id:" + secret},
		"wrong secret":   {id, id + ":" + token.RandomSecret()},
		"no separator":   {id, "garbage"},
		"unknown id":     {"wp-unknown", "wp-unknown:" + secret},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.manager.GetDetails(context.Background(), tc.id, tc.token)
			requirePermissionDenied(t, err)
		})
	}
}

func TestWorkOrderToken(t *testing.T) {
	f := newFixture(t)
	id, accessToken := f.create(t, creationData(f))

	encrypted, err := f.manager.CreateWorkOrderToken(context.Background(), id, "f2", accessToken)
	require.NoError(t, err)

	signed, err := crypt4gh.Decrypt(encrypted, f.userPrivKey)
	require.NoError(t, err)

	claims := &workpackage.WorkOrderClaims{}
	parsed, err := jwt.ParseWithClaims(string(signed), claims, func(*jwt.Token) (any, error) {
		return f.signer.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithTimeFunc(func() time.Time { return f.now }))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, workpackage.WorkTypeDownload, claims.Type)
	assert.Equal(t, "f2", claims.FileID)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, f.userKey, claims.UserPublicCrypt4ghKey)
	assert.Equal(t, "Ada Lovelace", claims.FullUserName)
	assert.Equal(t, "ada@example.org", claims.Email)

	wp, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, f.oracle.grants, 1)
	assert.Equal(t, grant{"u1", "f2", wp.Expires}, f.oracle.grants[0])
}

func TestWorkOrderTokenForForeignFile(t *testing.T) {
	f := newFixture(t)
	data := creationData(f)
	data.FileIDs = []string{"f1"}
	id, accessToken := f.create(t, data)

	_, err := f.manager.CreateWorkOrderToken(context.Background(), id, "f2", accessToken)
	requirePermissionDenied(t, err)
	assert.Empty(t, f.oracle.grants)
}

func TestWorkOrderTokenGrantFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	id, accessToken := f.create(t, creationData(f))

	f.oracle.grantErr = assert.AnError
	_, err := f.manager.CreateWorkOrderToken(context.Background(), id, "f2", accessToken)
	require.NoError(t, err)
}

func TestDatasetDeletedMidLife(t *testing.T) {
	f := newFixture(t)
	id, accessToken := f.create(t, creationData(f))

	require.NoError(t, f.manager.DeleteDataset(context.Background(), "ds1"))

	details, err := f.manager.GetDetails(context.Background(), id, accessToken)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f1": "", "f2": "", "f3": ""}, details.Files)

	// the work package is self-contained
	_, err = f.manager.CreateWorkOrderToken(context.Background(), id, "f2", accessToken)
	require.NoError(t, err)
}

func TestExpiredWorkPackage(t *testing.T) {
	f := newFixture(t)
	id, accessToken := f.create(t, creationData(f))

	f.now = f.now.Add(30*24*time.Hour + time.Second)

	_, err := f.manager.GetDetails(context.Background(), id, accessToken)
	requirePermissionDenied(t, err)
	_, err = f.manager.CreateWorkOrderToken(context.Background(), id, "f1", accessToken)
	requirePermissionDenied(t, err)
}

func TestRevokedAccess(t *testing.T) {
	f := newFixture(t)
	id, accessToken := f.create(t, creationData(f))

	f.oracle.allowed = map[string]bool{}
	_, err := f.manager.GetDetails(context.Background(), id, accessToken)
	requirePermissionDenied(t, err)
}

func TestListUserDatasets(t *testing.T) {
	f := newFixture(t)
	f.oracle.datasets = []string{"ds1", "ds9"}

	datasets, err := f.manager.ListUserDatasets(context.Background(), "u1", f.assertion)
	require.NoError(t, err)
	// unknown datasets are dropped
	require.Len(t, datasets, 1)
	assert.Equal(t, "ds1", datasets[0].ID)
}

func TestListUserDatasetsForOtherUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.ListUserDatasets(context.Background(), "u2", f.assertion)
	requirePermissionDenied(t, err)
}

func requirePermissionDenied(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var denied errtypes.IsPermissionDenied
	require.ErrorAs(t, err, &denied)
}
