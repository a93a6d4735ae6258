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

// Package token implements the token codec: ES256 signing of compact tokens,
// crypto-strong token material and verifier fingerprints.
package token

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	tokenIDLength = 20
	secretLength  = 24
)

// Signer signs compact tokens with the service's ES256 private key.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner creates a Signer from a private ES256 key in JWK format.
func NewSigner(signingKey string) (*Signer, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON([]byte(signingKey)); err != nil {
		return nil, errors.Wrap(err, "token: error parsing signing key")
	}
	key, ok := jwk.Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("token: signing key is not a private EC key")
	}
	return &Signer{key: key}, nil
}

// Sign produces an ES256-signed compact token over the given claims.
func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "token: error signing token")
	}
	return signed, nil
}

// PublicKey returns the public part of the signing key. Downstream services
// use it to verify work order tokens.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// RandomTokenID returns a crypto-strong 20-byte identifier in url-safe
// base64 encoding.
func RandomTokenID() string {
	return randomString(tokenIDLength)
}

// RandomSecret returns a crypto-strong 24-byte secret in url-safe base64
// encoding.
func RandomSecret() string {
	return randomString(secretLength)
}

// Fingerprint returns the SHA-256 hash of the given secret as a lowercase
// hex string. Only the fingerprint is persisted, never the secret.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func randomString(n int) string {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		// rand.Read only fails when the platform entropy source is broken
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}
