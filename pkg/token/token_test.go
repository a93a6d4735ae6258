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

package token

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// test fixture, do not use outside of tests
const signingKeyJWK = `{"crv": "P-256", "kty": "EC",` +
	` "x": "S0MhyDim0XM2WdDviR0aNBlcbADgyL1n9Zw9VEVK4p0",` +
	` "y": "HNmvhd9Fq12udDY-74cm_ebgkM-sP32PSaEWGg5BaKM",` +
	` "d": "DeXhM7pUbCfRaHckd2gACfLGSKyT8G41ayb5Qfx8Gvk"}`

func TestNewSigner(t *testing.T) {
	signer, err := NewSigner(signingKeyJWK)
	require.NoError(t, err)
	require.NotNil(t, signer.PublicKey())
}

func TestNewSignerRejectsPublicKey(t *testing.T) {
	publicJWK := `{"crv": "P-256", "kty": "EC",` +
		` "x": "S0MhyDim0XM2WdDviR0aNBlcbADgyL1n9Zw9VEVK4p0",` +
		` "y": "HNmvhd9Fq12udDY-74cm_ebgkM-sP32PSaEWGg5BaKM"}`
	_, err := NewSigner(publicJWK)
	assert.Error(t, err)
}

func TestSignRoundTrip(t *testing.T) {
	signer, err := NewSigner(signingKeyJWK)
	require.NoError(t, err)

	signed, err := signer.Sign(jwt.MapClaims{"file_id": "f2", "type": "download"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (any, error) {
		return signer.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "ES256", parsed.Header["alg"])
	assert.Equal(t, "JWT", parsed.Header["typ"])
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "f2", claims["file_id"])
	assert.Equal(t, "download", claims["type"])
}

func TestRandomTokenMaterial(t *testing.T) {
	id := RandomTokenID()
	assert.Len(t, id, 27) // 20 bytes in unpadded url-safe base64
	secret := RandomSecret()
	assert.Len(t, secret, 32) // 24 bytes in unpadded url-safe base64
	assert.NotEqual(t, RandomTokenID(), id)
	assert.NotEqual(t, RandomSecret(), secret)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t,
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		Fingerprint("test"))
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
}
