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

// Package workpackages exposes the work package manager over HTTP.
package workpackages

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/genomics-archive/wps/pkg/appctx"
	"github.com/genomics-archive/wps/pkg/errtypes"
	"github.com/genomics-archive/wps/pkg/workpackage"
)

// Manager is the part of the work package manager the service needs.
type Manager interface {
	Create(ctx context.Context, data *workpackage.CreationData, assertion string) (*workpackage.CreationResponse, error)
	GetDetails(ctx context.Context, wpID, accessToken string) (*workpackage.Details, error)
	CreateWorkOrderToken(ctx context.Context, wpID, fileID, accessToken string) (string, error)
	ListUserDatasets(ctx context.Context, userID, assertion string) ([]*workpackage.Dataset, error)
}

type svc struct {
	manager Manager
	router  chi.Router
}

// New returns the work packages HTTP service.
func New(manager Manager) http.Handler {
	s := &svc{
		manager: manager,
		router:  chi.NewRouter(),
	}
	s.routerInit()
	return s
}

func (s *svc) routerInit() {
	s.router.Get("/health", s.health)
	s.router.Post("/work-packages", s.createWorkPackage)
	s.router.Get("/work-packages/{work_package_id}", s.getWorkPackage)
	s.router.Post("/work-packages/{work_package_id}/files/{file_id}/work-order-tokens", s.createWorkOrderToken)
	s.router.Get("/users/{user_id}/datasets", s.getUserDatasets)
}

func (s *svc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *svc) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *svc) createWorkPackage(w http.ResponseWriter, r *http.Request) {
	assertion, ok := bearerToken(r)
	if !ok {
		writeError(w, r, errtypes.InvalidCredentials("missing bearer token"))
		return
	}

	data := &workpackage.CreationData{}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		writeError(w, r, errtypes.BadRequest("invalid request body"))
		return
	}

	res, err := s.manager.Create(r.Context(), data, assertion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

func (s *svc) getWorkPackage(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := bearerToken(r)
	if !ok {
		writeError(w, r, errtypes.InvalidCredentials("missing bearer token"))
		return
	}

	wpID := chi.URLParam(r, "work_package_id")
	details, err := s.manager.GetDetails(r.Context(), wpID, accessToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, details)
}

func (s *svc) createWorkOrderToken(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := bearerToken(r)
	if !ok {
		writeError(w, r, errtypes.InvalidCredentials("missing bearer token"))
		return
	}

	wpID := chi.URLParam(r, "work_package_id")
	fileID := chi.URLParam(r, "file_id")
	workOrderToken, err := s.manager.CreateWorkOrderToken(r.Context(), wpID, fileID, accessToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"token": workOrderToken})
}

func (s *svc) getUserDatasets(w http.ResponseWriter, r *http.Request) {
	assertion, ok := bearerToken(r)
	if !ok {
		writeError(w, r, errtypes.InvalidCredentials("missing bearer token"))
		return
	}

	userID := chi.URLParam(r, "user_id")
	datasets, err := s.manager.ListUserDatasets(r.Context(), userID, assertion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, datasets)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log := appctx.GetLogger(r.Context())
		log.Err(err).Msg("error writing response")
	}
}

// writeError maps error kinds to status codes. Authentication and
// authorization failures are collapsed into one uniform 403 so that callers
// cannot probe for the existence of resources.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := appctx.GetLogger(r.Context())

	status := http.StatusInternalServerError
	detail := "internal server error"
	switch err.(type) {
	case errtypes.IsInvalidCredentials, errtypes.IsPermissionDenied:
		status = http.StatusForbidden
		detail = "not authorized"
	case errtypes.IsBadRequest:
		status = http.StatusUnprocessableEntity
		detail = err.Error()
	default:
		log.Error().Err(err).Str("request-id", appctx.GetRequestID(r.Context())).Msg("internal error")
	}

	writeJSON(w, r, status, map[string]string{"detail": detail})
}
