/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package config loads the engine's configuration with spf13/viper,
// following cmd/bowness/main.go's pattern of SetDefault plus a single
// config file path given on the command line. Unlike the teacher, this
// package reads viper exactly once and hands back a plain Config struct:
// spec.md section 9 calls for an explicit engine context, so nothing
// downstream reads package-level viper state.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the engine's full configuration surface, per spec.md section 6.
type Config struct {
	// CAFile and CAPath name trust material for a future X.509 chain
	// validator; the core does not itself validate chains (spec.md
	// section 1 Non-goals), but the settings are still loaded so a
	// caller layering that validation in has them available.
	CAFile string
	CAPath string

	// DataDir is the root directory under which keycache writes
	// downloaded key files (<DataDir>/keys/stir_shaken/...).
	DataDir string

	// StorePath is the kvstore database file backing the persistent key
	// index.
	StorePath string

	// StorePublicKeyURL is loaded from the required store.public_key_url
	// setting. The engine does not read it: the x5u stamped when signing
	// is the public-key URL of the certificate the registry returns.
	StorePublicKeyURL string

	// CertificatePath and CertificatePublicKeyURL override the registry
	// lookup with a single static certificate, for standalone/test
	// deployments that don't run a full certificate registry.
	CertificatePath         string
	CertificatePublicKeyURL string

	// CacheMaxSize bounds the number of distinct cached keys (section
	// 4.B/9); 0 disables eviction.
	CacheMaxSize int

	// CurlTimeout bounds a single key fetch.
	CurlTimeout time.Duration

	// PerHostFetchLimit and PerHostFetchBurst configure keyfetch's
	// defensive per-host rate limiter.
	PerHostFetchLimit float64
	PerHostFetchBurst int

	// LegacyIatMilliseconds selects the signing operation's iat
	// computation; see passport.SignOptions and DESIGN.md.
	LegacyIatMilliseconds bool
}

// requiredKeys mirrors cmd/bowness/main.go's verifyRequired call: these
// settings have no sane default and must come from the config file.
var requiredKeys = []string{
	"store.path",
	"store.public_key_url",
}

// Load reads the config file at path, validates required keys are
// present, and returns a Config. It follows the teacher's SetDefault,
// ReadInConfig, IsSet-based validation sequence exactly, just scoped to
// a local viper.Viper instance instead of the package-level singleton.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("ca_file", "")
	v.SetDefault("ca_path", "")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("cache_max_size", 0)
	v.SetDefault("curl_timeout", 10)
	v.SetDefault("per_host_fetch_limit", 1.0)
	v.SetDefault("per_host_fetch_burst", 5)
	v.SetDefault("legacy_iat_milliseconds", true)
	v.SetDefault("certificate.path", "")
	v.SetDefault("certificate.public_key_url", "")

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			return Config{}, fmt.Errorf("config: missing required setting: %s", key)
		}
	}

	return Config{
		CAFile:                  v.GetString("ca_file"),
		CAPath:                  v.GetString("ca_path"),
		DataDir:                 v.GetString("data_dir"),
		StorePath:               v.GetString("store.path"),
		StorePublicKeyURL:       v.GetString("store.public_key_url"),
		CertificatePath:         v.GetString("certificate.path"),
		CertificatePublicKeyURL: v.GetString("certificate.public_key_url"),
		CacheMaxSize:            v.GetInt("cache_max_size"),
		CurlTimeout:             time.Duration(v.GetInt("curl_timeout")) * time.Second,
		PerHostFetchLimit:       v.GetFloat64("per_host_fetch_limit"),
		PerHostFetchBurst:       v.GetInt("per_host_fetch_burst"),
		LegacyIatMilliseconds:   v.GetBool("legacy_iat_milliseconds"),
	}, nil
}
