/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /tmp/index.db
  public_key_url: https://example.test/keys/node.pub
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CacheMaxSize != 0 {
		t.Errorf("expected default cache_max_size 0, got %d", cfg.CacheMaxSize)
	}
	if !cfg.LegacyIatMilliseconds {
		t.Errorf("expected default legacy_iat_milliseconds true")
	}
	if cfg.DataDir != "./data" {
		t.Errorf("expected default data_dir ./data, got %q", cfg.DataDir)
	}
}

func TestLoadMissingRequiredKeyIsError(t *testing.T) {
	path := writeConfig(t, `cache_max_size: 10`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for missing store.path/store.public_key_url")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /tmp/index.db
  public_key_url: https://example.test/keys/node.pub
cache_max_size: 500
curl_timeout: 5
legacy_iat_milliseconds: false
certificate:
  path: /tmp/node.pem
  public_key_url: https://example.test/keys/node.pub
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CacheMaxSize != 500 {
		t.Errorf("expected cache_max_size 500, got %d", cfg.CacheMaxSize)
	}
	if cfg.LegacyIatMilliseconds {
		t.Errorf("expected legacy_iat_milliseconds false")
	}
	if cfg.CertificatePath != "/tmp/node.pem" {
		t.Errorf("expected certificate.path override, got %q", cfg.CertificatePath)
	}
}
