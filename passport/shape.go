/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package passport

import (
	"fmt"

	"github.com/stirshaken/core/sserr"
)

// ValidateShape enforces the ingress shape check from spec.md section 4.E:
// header and payload must be present objects, header.ppt/typ/alg must match
// the fixed profile, and payload.orig.tn must be a non-empty string.
//
// On success it returns deep copies of the header and payload sub-objects;
// doc itself is never mutated.
func ValidateShape(doc map[string]interface{}) (header, payload map[string]interface{}, err *sserr.Error) {
	rawHeader, ok := doc["header"]
	if !ok {
		return nil, nil, sserr.ShapeInvalidError("header", fmt.Errorf("missing"))
	}
	header, ok = toObject(rawHeader)
	if !ok {
		return nil, nil, sserr.ShapeInvalidError("header", fmt.Errorf("not an object"))
	}

	rawPayload, ok := doc["payload"]
	if !ok {
		return nil, nil, sserr.ShapeInvalidError("payload", fmt.Errorf("missing"))
	}
	payload, ok = toObject(rawPayload)
	if !ok {
		return nil, nil, sserr.ShapeInvalidError("payload", fmt.Errorf("not an object"))
	}

	if err := requireStringField(header, "ppt", Ppt); err != nil {
		return nil, nil, err
	}
	if err := requireStringField(header, "typ", Typ); err != nil {
		return nil, nil, err
	}
	if err := requireStringField(header, "alg", Alg); err != nil {
		return nil, nil, err
	}

	tn, ok := origTN(payload)
	if !ok || tn == "" {
		return nil, nil, sserr.ShapeInvalidError("payload.orig.tn", fmt.Errorf("must be a non-empty string"))
	}

	return deepCopyObject(header), deepCopyObject(payload), nil
}

// origTN extracts payload.orig.tn, if present and well-formed.
func origTN(payload map[string]interface{}) (string, bool) {
	rawOrig, ok := payload["orig"]
	if !ok {
		return "", false
	}
	orig, ok := toObject(rawOrig)
	if !ok {
		return "", false
	}
	tn, ok := orig["tn"].(string)
	return tn, ok
}

func requireStringField(obj map[string]interface{}, field, want string) *sserr.Error {
	raw, ok := obj[field]
	if !ok {
		return sserr.ShapeInvalidError("header."+field, fmt.Errorf("missing"))
	}
	got, ok := raw.(string)
	if !ok {
		return sserr.ShapeInvalidError("header."+field, fmt.Errorf("not a string"))
	}
	if got != want {
		return sserr.ShapeInvalidError("header."+field, fmt.Errorf("got %q, want %q", got, want))
	}
	return nil
}

func toObject(v interface{}) (map[string]interface{}, bool) {
	obj, ok := v.(map[string]interface{})
	return obj, ok
}

// deepCopyObject returns a structural copy of obj so that mutations to the
// result never alias the caller's input document.
func deepCopyObject(obj map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyObject(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		// Strings, float64, bool, nil from encoding/json are all immutable
		// value types; nothing further to copy.
		return v
	}
}
