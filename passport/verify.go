/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package passport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/stirshaken/core/sserr"
)

// KeyResolver abstracts "give me a valid local key path for this URL" —
// spec.md section 4.D's key cache manager contract — so passport (component
// E) can depend on it without importing keycache (component D) directly;
// keycache.Manager satisfies this interface and is what engine wires in.
type KeyResolver interface {
	GetLocalKeyPath(ctx context.Context, url string) (string, error)
}

// Verify implements spec.md section 4.E's verification operation. All five
// inputs must be non-empty. It resolves a local copy of the public key at
// publicKeyURL, verifies sigB64 (standard base64, padded) over the exact
// bytes of payloadStr, and on success parses headerStr/payloadStr as JSON
// without re-validating them against the STIR/SHAKEN profile — shape
// validation on the verify path is the caller's responsibility at a higher
// layer, per spec.md section 4.E step 6.
func Verify(ctx context.Context, headerStr, payloadStr, sigB64, algStr, publicKeyURL string, resolver KeyResolver) (*Result, *sserr.Error) {
	if headerStr == "" {
		return nil, sserr.MissingInputError("header")
	}
	if payloadStr == "" {
		return nil, sserr.MissingInputError("payload")
	}
	if sigB64 == "" {
		return nil, sserr.MissingInputError("signature")
	}
	if algStr == "" {
		return nil, sserr.MissingInputError("alg")
	}
	if publicKeyURL == "" {
		return nil, sserr.MissingInputError("x5u")
	}

	path, err := resolver.GetLocalKeyPath(ctx, publicKeyURL)
	if err != nil {
		if sErr, ok := err.(*sserr.Error); ok {
			return nil, sErr
		}
		return nil, sserr.FetchFailedError(err)
	}

	pub, err := ParsePublicKeyFile(path)
	if err != nil {
		return nil, sserr.KeyUnreadableError(err)
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, sserr.SignatureInvalidError(fmt.Errorf("decode signature: %w", err))
	}

	ok, err := verifyECDSA(pub, []byte(payloadStr), sig)
	if err != nil {
		return nil, sserr.CryptoInternalError(err)
	}
	if !ok {
		return nil, sserr.SignatureInvalidError(fmt.Errorf("signature does not match payload"))
	}

	var header, payload map[string]interface{}
	if err := json.Unmarshal([]byte(headerStr), &header); err != nil {
		return nil, sserr.SignatureInvalidError(fmt.Errorf("parse header JSON: %w", err))
	}
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return nil, sserr.SignatureInvalidError(fmt.Errorf("parse payload JSON: %w", err))
	}

	return &Result{
		Header:       header,
		Payload:      payload,
		Signature:    sig,
		SignatureB64: sigB64,
		Algorithm:    algStr,
		PublicKeyURL: publicKeyURL,
		HeaderStr:    headerStr,
		PayloadStr:   payloadStr,
	}, nil
}
