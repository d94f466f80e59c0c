/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package registry

import (
	"crypto/ecdsa"
	"fmt"
	"os"
)

// staticCertificate implements Certificate over a single private key file
// loaded once at construction.
type staticCertificate struct {
	publicKeyURL string
	priv         *ecdsa.PrivateKey
}

func (c *staticCertificate) PublicKeyURL() string { return c.publicKeyURL }

func (c *staticCertificate) PrivateKey() (*ecdsa.PrivateKey, error) {
	return c.priv, nil
}

// staticRegistry answers every LookupByCallerID with the same
// certificate. It exists for single-tenant deployments (the CLI, tests)
// that have exactly one signing identity and no real certificate
// registry to talk to; spec.md section 6 treats the registry purely as
// an external read interface, so this is a minimal standalone
// implementation of that interface rather than part of the core domain.
type staticRegistry struct {
	cert *staticCertificate
}

func (r *staticRegistry) LookupByCallerID(tn string) (Certificate, error) {
	return r.cert, nil
}

// ParseKeyFunc parses private key bytes into an *ecdsa.PrivateKey. It is
// supplied by the caller to avoid this package importing passport, which
// would create an import cycle (passport already depends on registry for
// its Certificate/Registry aliases).
type ParseKeyFunc func([]byte) (*ecdsa.PrivateKey, error)

// NewStaticRegistry loads a single PEM/JWK-encoded private key from path
// and returns a Registry that hands it out for every lookup, stamping
// publicKeyURL as the x5u for every signed passport.
func NewStaticRegistry(path, publicKeyURL string, parseKey ParseKeyFunc) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read key file %s: %w", path, err)
	}

	priv, err := parseKey(data)
	if err != nil {
		return nil, fmt.Errorf("registry: parse key file %s: %w", path, err)
	}

	return &staticRegistry{cert: &staticCertificate{publicKeyURL: publicKeyURL, priv: priv}}, nil
}
