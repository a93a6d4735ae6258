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

package workpackages

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomics-archive/wps/pkg/errtypes"
	"github.com/genomics-archive/wps/pkg/workpackage"
)

type fakeManager struct {
	details *workpackage.Details
	err     error

	lastAssertion   string
	lastAccessToken string
	lastWpID        string
	lastFileID      string
}

func (m *fakeManager) Create(_ context.Context, data *workpackage.CreationData, assertion string) (*workpackage.CreationResponse, error) {
	m.lastAssertion = assertion
	if m.err != nil {
		return nil, m.err
	}
	return &workpackage.CreationResponse{ID: "wp-1", Token: "encrypted"}, nil
}

func (m *fakeManager) GetDetails(_ context.Context, wpID, accessToken string) (*workpackage.Details, error) {
	m.lastWpID, m.lastAccessToken = wpID, accessToken
	if m.err != nil {
		return nil, m.err
	}
	return m.details, nil
}

func (m *fakeManager) CreateWorkOrderToken(_ context.Context, wpID, fileID, accessToken string) (string, error) {
	m.lastWpID, m.lastFileID, m.lastAccessToken = wpID, fileID, accessToken
	if m.err != nil {
		return "", m.err
	}
	return "work-order-token", nil
}

func (m *fakeManager) ListUserDatasets(_ context.Context, userID, assertion string) ([]*workpackage.Dataset, error) {
	m.lastAssertion = assertion
	if m.err != nil {
		return nil, m.err
	}
	return []*workpackage.Dataset{{ID: "ds1", Title: "A dataset"}}, nil
}

func doRequest(handler http.Handler, method, target, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := New(&fakeManager{})
	w := doRequest(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "OK"}`, w.Body.String())
}

func TestCreateWorkPackage(t *testing.T) {
	m := &fakeManager{}
	s := New(m)
	body := `{"dataset_id": "ds1", "type": "download", "user_public_crypt4gh_key": "key"}`
	w := doRequest(s, http.MethodPost, "/work-packages", body, "assertion")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id": "wp-1", "token": "encrypted"}`, w.Body.String())
	assert.Equal(t, "assertion", m.lastAssertion)
}

func TestCreateWorkPackageWithoutBearer(t *testing.T) {
	s := New(&fakeManager{})
	w := doRequest(s, http.MethodPost, "/work-packages", `{}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateWorkPackageWithBadBody(t *testing.T) {
	s := New(&fakeManager{})
	w := doRequest(s, http.MethodPost, "/work-packages", "{not json", "assertion")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetWorkPackage(t *testing.T) {
	created := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	m := &fakeManager{details: &workpackage.Details{
		Type:    workpackage.WorkTypeDownload,
		Files:   map[string]string{"f1": ".txt"},
		Created: created,
		Expires: created.AddDate(0, 0, 30),
	}}
	s := New(m)
	w := doRequest(s, http.MethodGet, "/work-packages/wp-1", "", "wp-1:secret")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "wp-1", m.lastWpID)
	assert.Equal(t, "wp-1:secret", m.lastAccessToken)

	var details workpackage.Details
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &details))
	assert.Equal(t, workpackage.WorkTypeDownload, details.Type)
	assert.Equal(t, map[string]string{"f1": ".txt"}, details.Files)
	assert.True(t, details.Created.Equal(created))
}

func TestCreateWorkOrderToken(t *testing.T) {
	m := &fakeManager{}
	s := New(m)
	w := doRequest(s, http.MethodPost, "/work-packages/wp-1/files/f2/work-order-tokens", "", "wp-1:secret")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"token": "work-order-token"}`, w.Body.String())
	assert.Equal(t, "wp-1", m.lastWpID)
	assert.Equal(t, "f2", m.lastFileID)
}

func TestGetUserDatasets(t *testing.T) {
	s := New(&fakeManager{})
	w := doRequest(s, http.MethodGet, "/users/u1/datasets", "", "assertion")

	assert.Equal(t, http.StatusOK, w.Code)
	var datasets []*workpackage.Dataset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &datasets))
	require.Len(t, datasets, 1)
	assert.Equal(t, "ds1", datasets[0].ID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid credentials", errtypes.InvalidCredentials("bad assertion"), http.StatusForbidden},
		{"permission denied", errtypes.PermissionDenied("no access"), http.StatusForbidden},
		{"bad request", errtypes.BadRequest("bad key"), http.StatusUnprocessableEntity},
		{"internal", errtypes.InternalError("store down"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeManager{err: tc.err})
			w := doRequest(s, http.MethodGet, "/work-packages/wp-1", "", "wp-1:secret")
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusForbidden {
				// no details are leaked on authorization failures
				assert.NotContains(t, w.Body.String(), "bad assertion")
				assert.NotContains(t, w.Body.String(), "no access")
			}
		})
	}
}
