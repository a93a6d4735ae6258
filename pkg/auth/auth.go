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

// Package auth verifies the internal bearer assertions minted by the upstream
// auth service and extracts the caller's user context from them.
package auth

import (
	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/genomics-archive/wps/pkg/errtypes"
)

// UserContext describes the user on whose behalf a request is made.
type UserContext struct {
	ID    string
	Name  string
	Email string
	// Title is the academic title, if any. It is prepended to Name
	// when the full user name is recorded.
	Title string
}

// FullName returns the user's name including the academic title.
func (u *UserContext) FullName() string {
	if u.Title == "" {
		return u.Name
	}
	return u.Title + " " + u.Name
}

// Verifier validates internal bearer assertions.
type Verifier struct {
	key         any
	algs        []string
	checkClaims []string
}

// NewVerifier creates a Verifier from the auth service's public key in JWK
// format, the set of accepted signing algorithms and the claims that must be
// present in every assertion.
func NewVerifier(authKey string, algs, checkClaims []string) (*Verifier, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON([]byte(authKey)); err != nil {
		return nil, errors.Wrap(err, "auth: error parsing auth key")
	}
	if !jwk.IsPublic() {
		return nil, errors.New("auth: auth key must be a public key")
	}
	return &Verifier{key: jwk.Key, algs: algs, checkClaims: checkClaims}, nil
}

// Verify checks the signature and required claims of the given assertion and
// returns the user context asserted by it. Any failure is reported as
// invalid credentials without further detail.
func (v *Verifier) Verify(assertion string) (*UserContext, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(assertion, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods(v.algs))
	if err != nil || !parsed.Valid {
		return nil, errtypes.InvalidCredentials("invalid internal assertion")
	}

	for _, claim := range v.checkClaims {
		if _, ok := claims[claim]; !ok {
			return nil, errtypes.InvalidCredentials("assertion misses claim " + claim)
		}
	}

	user := &UserContext{
		ID:    stringClaim(claims, "id"),
		Name:  stringClaim(claims, "name"),
		Email: stringClaim(claims, "email"),
		Title: stringClaim(claims, "title"),
	}
	if user.ID == "" {
		return nil, errtypes.InvalidCredentials("no internal user specified")
	}
	return user, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if value, ok := claims[name].(string); ok {
		return value
	}
	return ""
}
