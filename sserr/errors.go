/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package sserr defines the error taxonomy shared by every component of the
// engine (spec.md section 7), so that keyindex/keyfetch/keycache failures
// and passport shape/signature failures can be branched on by kind, not by
// matching error strings, no matter which package produced them.
package sserr

import "fmt"

// Kind distinguishes the error taxonomy spec.md section 7 requires callers
// to branch on programmatically, rather than by matching error strings.
type Kind int

const (
	// MissingInput means a required argument was empty.
	MissingInput Kind = iota
	// ShapeInvalid means the JWT shape/profile was violated; Field names
	// the offending field.
	ShapeInvalid
	// FetchFailed means a network or I/O failure prevented acquiring a key.
	FetchFailed
	// KeyUnreadable means a local key file was present but not parseable.
	KeyUnreadable
	// Expired means the freshness check failed and a re-fetch didn't rescue it.
	Expired
	// SignatureInvalid means cryptographic verification failed.
	SignatureInvalid
	// CertificateMissing means no certificate exists for a requested caller ID.
	CertificateMissing
	// CryptoInternal means a cryptographic primitive failed to initialize,
	// update, or finalize.
	CryptoInternal
)

func (k Kind) String() string {
	switch k {
	case MissingInput:
		return "MissingInput"
	case ShapeInvalid:
		return "ShapeInvalid"
	case FetchFailed:
		return "FetchFailed"
	case KeyUnreadable:
		return "KeyUnreadable"
	case Expired:
		return "Expired"
	case SignatureInvalid:
		return "SignatureInvalid"
	case CertificateMissing:
		return "CertificateMissing"
	case CryptoInternal:
		return "CryptoInternal"
	default:
		return "Unknown"
	}
}

// Error is the tagged result type the core returns for every failure path.
// Field is populated for ShapeInvalid and MissingInput and names the
// offending field or argument (e.g. "header.alg", "x5u"); it is empty for
// every other Kind.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func MissingInputError(field string) *Error {
	return &Error{Kind: MissingInput, Field: field, Err: fmt.Errorf("%s is required", field)}
}

func ShapeInvalidError(field string, err error) *Error {
	return &Error{Kind: ShapeInvalid, Field: field, Err: err}
}

func FetchFailedError(err error) *Error {
	return &Error{Kind: FetchFailed, Err: err}
}

func KeyUnreadableError(err error) *Error {
	return &Error{Kind: KeyUnreadable, Err: err}
}

func ExpiredError(err error) *Error {
	return &Error{Kind: Expired, Err: err}
}

func SignatureInvalidError(err error) *Error {
	return &Error{Kind: SignatureInvalid, Err: err}
}

func CertificateMissingError(tn string) *Error {
	return &Error{Kind: CertificateMissing, Err: fmt.Errorf("no certificate for caller id %q", tn)}
}

func CryptoInternalError(err error) *Error {
	return &Error{Kind: CryptoInternal, Err: err}
}
