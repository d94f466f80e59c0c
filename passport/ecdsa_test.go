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
	"testing"
)

func TestSignVerifyECDSARoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	data := []byte(`{"orig":{"tn":"+15551234567"}}`)

	sig, err := signECDSA(priv, data)
	if err != nil {
		t.Fatalf("signECDSA: %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("expected 64-byte raw r||s signature, got %d", len(sig))
	}

	ok, err := verifyECDSA(&priv.PublicKey, data, sig)
	if err != nil {
		t.Fatalf("verifyECDSA: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyECDSARejectsTamperedData(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	sig, err := signECDSA(priv, []byte("original"))
	if err != nil {
		t.Fatalf("signECDSA: %v", err)
	}

	ok, err := verifyECDSA(&priv.PublicKey, []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("verifyECDSA: %v", err)
	}
	if ok {
		t.Fatalf("expected tampered data to fail verification")
	}
}

func TestVerifyECDSARejectsWrongLengthSignature(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	_, err := verifyECDSA(&priv.PublicKey, []byte("data"), []byte("too short"))
	if err == nil {
		t.Fatalf("expected error for wrong-length signature")
	}
}
