/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package passport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stirshaken/core/registry"
	"github.com/stirshaken/core/sserr"
)

// Certificate and Registry are aliases for the collaborator interfaces
// declared in package registry (spec.md section 6), kept visible here so
// callers can write passport.Certificate/passport.Registry without an
// extra import.
type Certificate = registry.Certificate
type Registry = registry.Registry

// SignOptions configures the parts of the signing operation spec.md section
// 9 flags as open questions pending owner sign-off.
type SignOptions struct {
	// Attest is the attestation level stamped into payload.attest.
	// The source stamps the literal "B" unconditionally; kept as the
	// default here, but exposed so a caller can supply real attestation
	// policy once one exists upstream (spec.md section 1 Non-goals: this
	// core does not itself compute attestation level).
	Attest string

	// OrigID is the origination identifier stamped into payload.origid.
	// The source stamps the literal "asterisk" unconditionally.
	OrigID string

	// LegacyIatMilliseconds selects between the source's iat computation
	// (tv_sec + tv_usec/1000, which mixes seconds and milliseconds — almost
	// certainly a bug, see spec.md section 9) and a corrected tv_sec-only
	// computation. Default true, to preserve observable behavior until the
	// owner decides; see DESIGN.md.
	LegacyIatMilliseconds bool

	// Now is used for iat computation; defaults to time.Now, overridable
	// in tests.
	Now func() time.Time
}

// DefaultSignOptions returns the options that reproduce the source's
// observable behavior exactly.
func DefaultSignOptions() SignOptions {
	return SignOptions{
		Attest:                "B",
		OrigID:                "asterisk",
		LegacyIatMilliseconds: true,
		Now:                   time.Now,
	}
}

func computeIAT(now time.Time, legacyMilliseconds bool) int64 {
	tvSec := now.Unix()
	if !legacyMilliseconds {
		return tvSec
	}
	tvUsec := int64(now.Nanosecond()) / 1000
	return tvSec + tvUsec/1000
}

// Sign implements spec.md section 4.E's signing operation. doc must have a
// well-formed header (ppt/typ/alg) and payload.orig.tn; Sign looks up the
// caller's certificate by that number, stamps x5u/attest/origid/iat, signs
// the resulting payload, and returns the structured Result.
//
// Per spec.md section 4.E step 3 / section 8's round-trip law, the bytes
// actually signed are the canonical serialization of the payload object
// alone (matching what Verify checks against PayloadStr) — the header is
// carried alongside but is not itself part of the signature input.
func Sign(doc map[string]interface{}, registry Registry, opts SignOptions) (*Result, *sserr.Error) {
	header, payload, shapeErr := ValidateShape(doc)
	if shapeErr != nil {
		return nil, shapeErr
	}

	callerTN, _ := origTN(payload)

	cert, err := registry.LookupByCallerID(callerTN)
	if err != nil || cert == nil {
		return nil, sserr.CertificateMissingError(callerTN)
	}

	priv, err := cert.PrivateKey()
	if err != nil {
		return nil, sserr.CryptoInternalError(fmt.Errorf("load signing key: %w", err))
	}

	header["x5u"] = cert.PublicKeyURL()
	payload["attest"] = opts.Attest
	payload["origid"] = opts.OrigID
	payload["iat"] = computeIAT(opts.Now(), opts.LegacyIatMilliseconds)

	payloadStr, err := json.Marshal(payload)
	if err != nil {
		return nil, sserr.CryptoInternalError(fmt.Errorf("serialize payload: %w", err))
	}
	headerStr, err := json.Marshal(header)
	if err != nil {
		return nil, sserr.CryptoInternalError(fmt.Errorf("serialize header: %w", err))
	}

	sig, err := signECDSA(priv, payloadStr)
	if err != nil {
		return nil, sserr.CryptoInternalError(fmt.Errorf("sign payload: %w", err))
	}

	return &Result{
		Header:       header,
		Payload:      payload,
		Signature:    sig,
		SignatureB64: base64.StdEncoding.EncodeToString(sig),
		Algorithm:    Alg,
		PublicKeyURL: header["x5u"].(string),
		HeaderStr:    string(headerStr),
		PayloadStr:   string(payloadStr),
	}, nil
}
