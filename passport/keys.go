/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package passport

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ParsePublicKeyFile parses the public key material at path, format PEM
// preferred but permissive (jwk.ParseKey also accepts a bare JWK document).
// This is the "parse the key at path" step of spec.md section 4.D/4.E.
func ParsePublicKeyFile(path string) (*ecdsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePublicKeyBytes(data)
}

// ParsePublicKeyBytes parses PEM-or-JWK encoded public key material.
func ParsePublicKeyBytes(data []byte) (*ecdsa.PublicKey, error) {
	key, err := parseKeyBytes(data)
	if err != nil {
		return nil, err
	}

	var pub ecdsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("key is not an ECDSA public key: %w", err)
	}
	return &pub, nil
}

// ParsePrivateKeyBytes parses PEM-or-JWK encoded private key material.
func ParsePrivateKeyBytes(data []byte) (*ecdsa.PrivateKey, error) {
	key, err := parseKeyBytes(data)
	if err != nil {
		return nil, err
	}

	var priv ecdsa.PrivateKey
	if err := key.Raw(&priv); err != nil {
		return nil, fmt.Errorf("key is not an ECDSA private key: %w", err)
	}
	return &priv, nil
}

// parseKeyBytes tries PEM first (the format spec.md section 4.D calls
// "preferred"), falling back to a raw JWK document so downloaded material
// in either form is accepted ("permissive", per spec.md section 4.E step 2).
func parseKeyBytes(data []byte) (jwk.Key, error) {
	if key, err := jwk.ParseKey(data, jwk.WithPEM(true)); err == nil {
		return key, nil
	}
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse key (neither PEM nor JWK): %w", err)
	}
	return key, nil
}
