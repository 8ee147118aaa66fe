package recipe

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/goplus/theora-recipe/internal/xos"
)

// ArtifactsFile is the name of the manifest written into a package directory.
const ArtifactsFile = "artifacts.json"

// ArtifactSet is what the Packager hands to the consumer.
type ArtifactSet struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	PackageID string `json:"package_id"`
	Strategy  string `json:"strategy"`
	// SourceHash is the dirhash of the extracted, patched source tree.
	SourceHash string `json:"source_hash,omitempty"`

	// Libs is ordered: declared libraries first, then the rest by name.
	Libs     []string `json:"libs"`
	Licenses []string `json:"licenses"`
	// Files are slash-separated paths relative to the package directory.
	Files []string `json:"files"`
}

// WriteArtifacts atomically writes set as dir/artifacts.json.
func WriteArtifacts(dir string, set *ArtifactSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	return xos.WriteFile(filepath.Join(dir, ArtifactsFile), append(data, '\n'), 0o644)
}

// ReadArtifacts reads dir/artifacts.json.
func ReadArtifacts(dir string) (*ArtifactSet, error) {
	data, err := os.ReadFile(filepath.Join(dir, ArtifactsFile))
	if err != nil {
		return nil, err
	}
	var set ArtifactSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return &set, nil
}
