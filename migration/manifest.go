package migration

import (
	_ "embed"
	"fmt"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"gopkg.in/yaml.v3"
)

//go:embed previous_versions.yaml
var embeddedManifest []byte

type manifestFile struct {
	Versions []manifestEntry `yaml:"versions"`
}

type manifestEntry struct {
	Name        string `yaml:"name"`
	DelegateKey string `yaml:"delegate_key"`
	CodeHash    string `yaml:"code_hash"`
}

// EmbeddedVersions returns the previous versions built into this binary, oldest first.
func EmbeddedVersions() ([]Version, error) {
	return LoadManifest(embeddedManifest)
}

// LoadManifest parses a previous-versions manifest. Entries are listed oldest first.
func LoadManifest(data []byte) ([]Version, error) {
	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not parse manifest: %w", err)
	}

	versions := make([]Version, 0, len(file.Versions))
	for i, entry := range file.Versions {
		delegateKey, err := interfaces.NewDelegateKeyFromHex(entry.DelegateKey)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d (%s): %w", i, entry.Name, err)
		}
		codeHash, err := interfaces.NewCodeHashFromHex(entry.CodeHash)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d (%s): %w", i, entry.Name, err)
		}
		versions = append(versions, Version{
			Name:        entry.Name,
			DelegateKey: delegateKey,
			CodeHash:    codeHash,
		})
	}
	return versions, nil
}
