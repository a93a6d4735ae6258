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
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/genomics-archive/wps/pkg/errtypes"
)

// WorkType is the type of work that a work package describes.
type WorkType string

const (
	// WorkTypeDownload marks work packages granting downloads.
	WorkTypeDownload WorkType = "download"
	// WorkTypeUpload marks work packages granting uploads.
	WorkTypeUpload WorkType = "upload"
)

// ParseWorkType converts a string into a WorkType.
func ParseWorkType(s string) (WorkType, error) {
	switch WorkType(s) {
	case WorkTypeDownload:
		return WorkTypeDownload, nil
	case WorkTypeUpload:
		return WorkTypeUpload, nil
	}
	return "", errtypes.BadRequest("unknown work type: " + s)
}

// DatasetFile is a file that is part of a dataset.
type DatasetFile struct {
	ID string `json:"id" bson:"id"`
	// Extension is the file extension including the leading dot.
	Extension string `json:"extension" bson:"extension"`
}

// Dataset is the local projection of a dataset announced on the event bus.
type Dataset struct {
	ID          string        `json:"id" bson:"_id"`
	Title       string        `json:"title" bson:"title"`
	Description string        `json:"description" bson:"description"`
	Stage       WorkType      `json:"stage" bson:"stage"`
	Files       []DatasetFile `json:"files" bson:"files"`
}

// WorkPackage is the persisted authorization envelope binding a user, a
// dataset, a work type and a file subset for a validity window. Only the
// hash of the access token secret is stored, never the token itself.
type WorkPackage struct {
	ID                    string    `bson:"_id"`
	DatasetID             string    `bson:"dataset_id"`
	Type                  WorkType  `bson:"type"`
	UserID                string    `bson:"user_id"`
	UserPublicCrypt4ghKey string    `bson:"user_public_crypt4gh_key"`
	FullUserName          string    `bson:"full_user_name"`
	Email                 string    `bson:"email"`
	FileIDs               []string  `bson:"file_ids"`
	TokenHash             string    `bson:"token_hash"`
	Created               time.Time `bson:"created"`
	Expires               time.Time `bson:"expires"`
}

// CreationData is the request payload for creating a work package.
type CreationData struct {
	DatasetID string `json:"dataset_id"`
	Type      string `json:"type"`
	// FileIDs restricts the work package to a subset of the dataset files.
	// A nil value selects all files of the dataset.
	FileIDs               []string `json:"file_ids"`
	UserPublicCrypt4ghKey string   `json:"user_public_crypt4gh_key"`
}

// CreationResponse is returned when a work package has been created. Token is
// the access token encrypted with the user's public Crypt4GH key.
type CreationResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Details describes a work package to the holder of its access token.
type Details struct {
	Type WorkType `json:"type"`
	// Files maps the ids of all included files to their extensions.
	Files   map[string]string `json:"files"`
	Created time.Time         `json:"created"`
	Expires time.Time         `json:"expires"`
}

// WorkOrderClaims is the payload of a work order token.
type WorkOrderClaims struct {
	Type                  WorkType `json:"type"`
	FileID                string   `json:"file_id"`
	UserID                string   `json:"user_id"`
	UserPublicCrypt4ghKey string   `json:"user_public_crypt4gh_key"`
	FullUserName          string   `json:"full_user_name"`
	Email                 string   `json:"email"`
	jwt.RegisteredClaims
}
