/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package engine

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stirshaken/core/internal/config"
	"github.com/stirshaken/core/passport"
	"github.com/stirshaken/core/registry"
	"github.com/stirshaken/core/sserr"
)

// newTestEngine wires a full Engine against a temp kvstore and a static
// single-certificate registry, mirroring how cmd/ssengine assembles one,
// but scoped to a throwaway directory per test.
func newTestEngine(t *testing.T, publicKeyURL string, signPriv *ecdsa.PrivateKey) *Engine {
	t.Helper()
	dir := t.TempDir()

	der, err := x509.MarshalPKCS8PrivateKey(signPriv)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	keyPath := filepath.Join(dir, "node.key")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reg, err := registry.NewStaticRegistry(keyPath, publicKeyURL, passport.ParsePrivateKeyBytes)
	if err != nil {
		t.Fatalf("NewStaticRegistry: %v", err)
	}

	cfg := config.Config{
		DataDir:               dir,
		StorePath:             filepath.Join(dir, "index.db"),
		StorePublicKeyURL:     publicKeyURL,
		CurlTimeout:           5 * time.Second,
		PerHostFetchLimit:     100,
		PerHostFetchBurst:     10,
		LegacyIatMilliseconds: true,
	}

	eng, err := New(cfg, reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func validDoc() map[string]interface{} {
	return map[string]interface{}{
		"header": map[string]interface{}{
			"ppt": "shaken",
			"typ": "passport",
			"alg": "ES256",
		},
		"payload": map[string]interface{}{
			"orig": map[string]interface{}{
				"tn": "+15551234567",
			},
		},
	}
}

// TestEngineSignThenVerify exercises spec.md section 8 scenario 6 end to
// end through the wired Engine: signing with a locally configured key and
// verifying against the matching public key served over HTTP, going
// through the real kvstore/keyindex/keyfetch/keycache chain rather than
// fakes, as passport_test.go does for the primitive alone.
func TestEngineSignThenVerify(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "s-maxage=3600")
		w.Write(pubPEM)
	}))
	defer server.Close()

	eng := newTestEngine(t, server.URL+"/keys/node.pub", priv)

	signed, signErr := eng.Sign(validDoc(), eng.SignOptionsFromConfig())
	if signErr != nil {
		t.Fatalf("Sign: %v", signErr)
	}
	if signed.Header["x5u"] != server.URL+"/keys/node.pub" {
		t.Errorf("unexpected x5u: %v", signed.Header["x5u"])
	}

	verified, verifyErr := eng.Verify(context.Background(),
		signed.HeaderStr, signed.PayloadStr, signed.SignatureB64,
		signed.Algorithm, signed.PublicKeyURL)
	if verifyErr != nil {
		t.Fatalf("Verify: %v", verifyErr)
	}
	if verified.Payload["attest"] != "B" {
		t.Errorf("expected attest=B in verified payload, got %v", verified.Payload["attest"])
	}
	if verified.Payload["origid"] != "asterisk" {
		t.Errorf("expected origid=asterisk in verified payload, got %v", verified.Payload["origid"])
	}
}

// TestEngineVerifyCachesAcrossCalls pins the "no fetch on a warm repeat
// within the expiration window" invariant from spec.md section 8 at the
// Engine level: the second Verify must not need the server at all.
func TestEngineVerifyCachesAcrossCalls(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Cache-Control", "s-maxage=3600")
		w.Write(pubPEM)
	}))
	defer server.Close()

	eng := newTestEngine(t, server.URL+"/keys/node.pub", priv)

	signed, signErr := eng.Sign(validDoc(), eng.SignOptionsFromConfig())
	if signErr != nil {
		t.Fatalf("Sign: %v", signErr)
	}

	for i := 0; i < 2; i++ {
		if _, verifyErr := eng.Verify(context.Background(),
			signed.HeaderStr, signed.PayloadStr, signed.SignatureB64,
			signed.Algorithm, signed.PublicKeyURL); verifyErr != nil {
			t.Fatalf("Verify call %d: %v", i, verifyErr)
		}
	}

	if fetches != 1 {
		t.Fatalf("expected exactly one fetch across two verify calls, got %d", fetches)
	}
}

// TestEngineSignWithoutRegistryIsCryptoInternal covers the constructor's
// documented nil-registry contract: an Engine built for verify-only use
// must fail Sign with a distinguishable error, not a nil pointer panic.
func TestEngineSignWithoutRegistryIsCryptoInternal(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		DataDir:           dir,
		StorePath:         filepath.Join(dir, "index.db"),
		StorePublicKeyURL: "https://example.test/keys/node.pub",
		CurlTimeout:       5 * time.Second,
		PerHostFetchLimit: 100,
		PerHostFetchBurst: 10,
	}

	eng, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	_, signErr := eng.Sign(validDoc(), eng.SignOptionsFromConfig())
	if signErr == nil || signErr.Kind != sserr.CryptoInternal {
		t.Fatalf("expected CryptoInternal, got %v", signErr)
	}
}
