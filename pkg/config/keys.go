package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/iam/pkg/auth"
)

// KeySource names a PEM public key file trusted for verification
type KeySource struct {
	Label string `yaml:"label"`
	Path  string `yaml:"path"`
}

// keySetFile is the on-disk YAML layout:
//
//	keys:
//	  - label: current
//	    path: keys/current.pem
//	  - label: previous
//	    path: keys/previous.pem
type keySetFile struct {
	Keys []KeySource `yaml:"keys"`
}

// ParseKeySources parses "label=path,label=path" preserving order
func ParseKeySources(value string) ([]KeySource, error) {
	var sources []KeySource
	for _, entry := range splitList(value) {
		label, path, ok := strings.Cut(entry, "=")
		label, path = strings.TrimSpace(label), strings.TrimSpace(path)
		if !ok || label == "" || path == "" {
			return nil, fmt.Errorf("invalid key entry %q (want label=path)", entry)
		}
		sources = append(sources, KeySource{Label: label, Path: path})
	}
	return sources, nil
}

// ReadKeySourcesFile reads a YAML key-set file. Relative key paths are
// resolved against the file's directory. A file listing no keys yields an
// empty slice, which retires every key.
func ReadKeySourcesFile(path string) ([]KeySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key set file: %w", err)
	}

	var file keySetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse key set file %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range file.Keys {
		if file.Keys[i].Path != "" && !filepath.IsAbs(file.Keys[i].Path) {
			file.Keys[i].Path = filepath.Join(base, file.Keys[i].Path)
		}
	}
	return file.Keys, nil
}

// KeySources returns the configured sources, preferring the YAML file
func (c JWTConfig) KeySources() ([]KeySource, error) {
	if c.VerificationKeysFile != "" {
		return ReadKeySourcesFile(c.VerificationKeysFile)
	}
	if len(c.VerificationKeys) == 0 {
		return nil, errors.New("no verification keys configured")
	}
	return c.VerificationKeys, nil
}

// LoadKeySet reads every source and builds an ordered key set
func LoadKeySet(alg string, sources []KeySource) (*auth.KeySet, error) {
	keys := make([]auth.VerificationKey, 0, len(sources))
	for _, src := range sources {
		if src.Path == "" {
			return nil, fmt.Errorf("key %q has no path", src.Label)
		}
		pub, err := auth.LoadPublicKeyFile(alg, src.Path)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", src.Label, err)
		}
		keys = append(keys, auth.VerificationKey{Label: src.Label, Key: pub})
	}
	return auth.NewKeySet(keys...)
}

// LoadVerificationKeys resolves the configured sources into a key set
func (c JWTConfig) LoadVerificationKeys() (*auth.KeySet, error) {
	sources, err := c.KeySources()
	if err != nil {
		return nil, err
	}
	return LoadKeySet(c.Algorithm, sources)
}

// watchPaths returns every file whose change should trigger a reload
func (c JWTConfig) watchPaths() []string {
	var paths []string
	if c.VerificationKeysFile != "" {
		paths = append(paths, c.VerificationKeysFile)
	}
	if sources, err := c.KeySources(); err == nil {
		for _, src := range sources {
			paths = append(paths, src.Path)
		}
	}
	return paths
}
