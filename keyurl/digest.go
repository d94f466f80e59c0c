/*
 * Copyright (c) 2020-2021 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package keyurl derives a stable, opaque identifier from a public-key URL.
package keyurl

import (
	"crypto/sha1" //nolint:gosec // used as an opaque identifier, not a security boundary
	"encoding/hex"
)

// Digest returns the 40-character lowercase hex SHA-1 digest of url's UTF-8
// bytes. It is used purely as a stable cache key; no cryptographic property
// of SHA-1 is relied upon, and two URLs colliding on their digest is treated
// as an ordinary cache miss (see keycache) rather than defended against.
func Digest(url string) string {
	sum := sha1.Sum([]byte(url)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
