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

// Package access implements the client for the external access oracle that
// decides whether a user may download or upload a dataset.
package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/genomics-archive/wps/pkg/httpclient"
	"github.com/genomics-archive/wps/pkg/workpackage"
)

// Client talks to the access oracle over HTTP.
type Client struct {
	downloadURL string
	uploadURL   string
	client      *httpclient.Client
}

// New creates an oracle client. The download and upload base URLs point to
// the work-type specific APIs of the oracle.
func New(downloadURL, uploadURL string, timeout time.Duration) *Client {
	return &Client{
		downloadURL: strings.TrimSuffix(downloadURL, "/"),
		uploadURL:   strings.TrimSuffix(uploadURL, "/"),
		client:      httpclient.New(httpclient.Timeout(timeout)),
	}
}

func (c *Client) baseURL(workType workpackage.WorkType) string {
	if workType == workpackage.WorkTypeUpload {
		return c.uploadURL
	}
	return c.downloadURL
}

// Check reports whether the user may perform work of the given type on the
// dataset. The oracle answers with a boolean body on 200 and with 404 for
// unknown combinations.
func (c *Client) Check(ctx context.Context, userID, datasetID string, workType workpackage.WorkType) (bool, error) {
	endpoint := fmt.Sprintf("%s/users/%s/datasets/%s",
		c.baseURL(workType), url.PathEscape(userID), url.PathEscape(datasetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errors.Wrap(err, "access: error creating request")
	}
	res, err := c.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "access: error checking access")
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		var allowed bool
		if err := json.NewDecoder(res.Body).Decode(&allowed); err != nil {
			return false, nil
		}
		return allowed, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, errors.Errorf("access: unexpected status %d checking access", res.StatusCode)
}

// ListDatasets returns the ids of all datasets the user may download.
func (c *Client) ListDatasets(ctx context.Context, userID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/users/%s/datasets", c.downloadURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "access: error creating request")
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "access: error listing datasets")
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		var ids []string
		if err := json.NewDecoder(res.Body).Decode(&ids); err != nil {
			return nil, errors.Wrap(err, "access: error decoding dataset list")
		}
		return ids, nil
	case http.StatusNotFound:
		return []string{}, nil
	}
	return nil, errors.Errorf("access: unexpected status %d listing datasets", res.StatusCode)
}

// RegisterGrant notifies the oracle that a work order token was minted for
// the given file. Callers treat failures as non-fatal.
func (c *Client) RegisterGrant(ctx context.Context, userID, fileID string, validUntil time.Time) error {
	endpoint := fmt.Sprintf("%s/users/%s/files/%s",
		c.downloadURL, url.PathEscape(userID), url.PathEscape(fileID))
	body, err := json.Marshal(map[string]string{
		"valid_until": validUntil.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.Wrap(err, "access: error encoding grant")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "access: error creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "access: error registering grant")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("access: unexpected status %d registering grant", res.StatusCode)
	}
	return nil
}
