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

// Package httpclient provides the outbound HTTP client used for calls to
// other internal services.
package httpclient

import (
	"errors"
	"net/http"
	"time"
)

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Timeout      time.Duration
	RoundTripper http.RoundTripper
}

// Timeout provides a function to set the timeout option.
func Timeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}

// RoundTripper provides a function to set a custom RoundTripper.
func RoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.RoundTripper = rt
	}
}

// New returns a new Client with the given options applied.
func New(opts ...Option) *Client {
	options := Options{}
	for _, o := range opts {
		o(&options)
	}

	rt := options.RoundTripper
	if rt == nil {
		rt = http.DefaultTransport
	}

	return &Client{c: &http.Client{
		Timeout:   options.Timeout,
		Transport: rt,
	}}
}

// Client wraps a http.Client but only exposes the Do method
// to force consumers to always create a request with http.NewRequestWithContext().
type Client struct {
	c *http.Client
}

// Do sends the request. The request must carry a context.
func (c *Client) Do(r *http.Request) (*http.Response, error) {
	if r.Context() == nil {
		return nil, errors.New("error: request must have a context")
	}
	return c.c.Do(r)
}
