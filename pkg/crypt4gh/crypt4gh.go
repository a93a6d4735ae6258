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

// Package crypt4gh wraps payloads in single-recipient Crypt4GH envelopes
// (X25519 key agreement + ChaCha20-Poly1305) so that only the holder of the
// recipient's private key can read them.
package crypt4gh

import (
	"bytes"
	"encoding/base64"
	"io"
	"regexp"
	"strings"

	"github.com/neicnordic/crypt4gh/keys"
	"github.com/neicnordic/crypt4gh/streaming"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/genomics-archive/wps/pkg/errtypes"
)

var (
	rePEMPrivate = regexp.MustCompile(`-.*PRIVATE.*-`)
	rePEMPublic  = regexp.MustCompile(`-----(BEGIN|END) CRYPT4GH PUBLIC KEY-----`)
)

// ValidatePublicKey checks the given base64 encoded Crypt4GH public key and
// returns it in canonical form. PEM headers and footers are stripped; private
// keys are rejected.
func ValidatePublicKey(key string) (string, error) {
	if key == "" {
		return "", errtypes.BadRequest("key must be a non-empty string")
	}
	if rePEMPrivate.MatchString(key) {
		return "", errtypes.BadRequest("do not pass a private key")
	}
	key = strings.TrimSpace(rePEMPublic.ReplaceAllString(key, ""))
	if _, err := decodeKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Encrypt wraps the given payload in a Crypt4GH envelope readable only by the
// holder of the given base64 encoded public key and returns the envelope in
// base64 encoding.
func Encrypt(payload []byte, recipientPublicKey string) (string, error) {
	recipient, err := decodeKey(strings.TrimSpace(rePEMPublic.ReplaceAllString(recipientPublicKey, "")))
	if err != nil {
		return "", err
	}

	// an ephemeral sender key pair is used for the key agreement
	_, senderPrivateKey, err := keys.GenerateKeyPair()
	if err != nil {
		return "", errors.Wrap(err, "crypt4gh: error generating sender key pair")
	}

	buf := &bytes.Buffer{}
	w, err := streaming.NewCrypt4GHWriter(buf, senderPrivateKey, [][chacha20poly1305.KeySize]byte{recipient}, nil)
	if err != nil {
		return "", errors.Wrap(err, "crypt4gh: error creating envelope writer")
	}
	if _, err := w.Write(payload); err != nil {
		return "", errors.Wrap(err, "crypt4gh: error writing payload")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "crypt4gh: error sealing envelope")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decrypt opens a base64 encoded Crypt4GH envelope using the recipient's
// private key and returns the contained payload.
func Decrypt(envelope string, privateKey [chacha20poly1305.KeySize]byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, errors.Wrap(err, "crypt4gh: error decoding envelope")
	}
	r, err := streaming.NewCrypt4GHReader(bytes.NewReader(raw), privateKey, nil)
	if err != nil {
		return nil, errors.Wrap(err, "crypt4gh: error opening envelope")
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "crypt4gh: error reading payload")
	}
	return payload, nil
}

// GenerateKeyPair creates a new X25519 key pair. The public key is returned
// in base64 encoding as users hand it to the service.
func GenerateKeyPair() (string, [chacha20poly1305.KeySize]byte, error) {
	publicKey, privateKey, err := keys.GenerateKeyPair()
	if err != nil {
		return "", privateKey, errors.Wrap(err, "crypt4gh: error generating key pair")
	}
	return base64.StdEncoding.EncodeToString(publicKey[:]), privateKey, nil
}

func decodeKey(key string) ([chacha20poly1305.KeySize]byte, error) {
	var decoded [chacha20poly1305.KeySize]byte
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return decoded, errtypes.BadRequest("key is not valid base64")
	}
	if len(raw) != chacha20poly1305.KeySize {
		return decoded, errtypes.BadRequest("key has wrong length")
	}
	copy(decoded[:], raw)
	return decoded, nil
}
