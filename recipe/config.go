package recipe

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed recipe.schema.json
var configSchema string

// Config is the optional recipe.yaml overriding the built-in recipe and
// the default options. Unset fields keep the built-in value.
type Config struct {
	Name       string        `yaml:"name"`
	Version    string        `yaml:"version"`
	URL        string        `yaml:"url"`
	SHA256     string        `yaml:"sha256"`
	ArchiveDir string        `yaml:"archive_dir"`
	Requires   []Requirement `yaml:"requires"`
	AuxFiles   []AuxFile     `yaml:"aux_files"`
	Patches    []Patch       `yaml:"patches"`

	Options struct {
		Shared *bool `yaml:"shared"`
		FPIC   *bool `yaml:"fPIC"`
	} `yaml:"options"`
	Settings Settings `yaml:"settings"`
}

// Load reads and validates a recipe.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the recipe schema and decodes it.
func Parse(data []byte) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return &Config{}, nil
	}
	res, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.New("invalid recipe: " + strings.Join(msgs, "; "))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply returns a copy of base with the configured fields overridden.
func (c *Config) Apply(base *PackageSpec) *PackageSpec {
	spec := *base
	spec.Requires = append([]Requirement(nil), base.Requires...)
	spec.AuxFiles = append([]AuxFile(nil), base.AuxFiles...)
	spec.Patches = append([]Patch(nil), base.Patches...)

	if c.Name != "" {
		spec.Name = c.Name
	}
	if c.Version != "" {
		spec.Version = c.Version
	}
	if c.URL != "" {
		spec.SourceURL = c.URL
	}
	if c.SHA256 != "" {
		spec.SourceSHA256 = strings.ToLower(c.SHA256)
	}
	if c.ArchiveDir != "" {
		spec.ArchiveDir = c.ArchiveDir
	}
	if c.Requires != nil {
		spec.Requires = append([]Requirement(nil), c.Requires...)
	}
	if c.AuxFiles != nil {
		spec.AuxFiles = append([]AuxFile(nil), c.AuxFiles...)
	}
	spec.Patches = append(spec.Patches, c.Patches...)
	return &spec
}

// ApplyOptions overrides opts with the configured options and settings.
func (c *Config) ApplyOptions(opts *BuildOptions) {
	if c.Options.Shared != nil {
		opts.Shared = *c.Options.Shared
	}
	if c.Options.FPIC != nil {
		opts.FPIC = *c.Options.FPIC
	}
	s := c.Settings
	for _, kv := range []struct {
		dst *string
		val string
	}{
		{&opts.Settings.OS, s.OS},
		{&opts.Settings.Arch, s.Arch},
		{&opts.Settings.Compiler, s.Compiler},
		{&opts.Settings.CompilerVersion, s.CompilerVersion},
		{&opts.Settings.CompilerRuntime, s.CompilerRuntime},
		{&opts.Settings.BuildType, s.BuildType},
	} {
		if kv.val != "" {
			*kv.dst = kv.val
		}
	}
}
