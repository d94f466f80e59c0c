/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package passport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func TestParsePublicKeyFilePEM(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.pub")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ParsePublicKeyFile(path)
	if err != nil {
		t.Fatalf("ParsePublicKeyFile: %v", err)
	}
	if !got.Equal(&priv.PublicKey) {
		t.Fatalf("parsed key does not match original")
	}
}

func TestParsePublicKeyFileCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.pub")
	if err := os.WriteFile(path, []byte("not a key at all"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := ParsePublicKeyFile(path)
	if err == nil {
		t.Fatalf("expected error parsing corrupted key file")
	}
}

func TestParsePrivateKeyBytesPEM(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	got, err := ParsePrivateKeyBytes(pemBytes)
	if err != nil {
		t.Fatalf("ParsePrivateKeyBytes: %v", err)
	}
	if got.D.Cmp(priv.D) != 0 {
		t.Fatalf("parsed private key does not match original")
	}
}
