package recipe

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// Compiler identifiers.
const (
	CompilerGCC          = "gcc"
	CompilerClang        = "clang"
	CompilerAppleClang   = "apple-clang"
	CompilerVisualStudio = "Visual Studio"
)

var (
	knownOS         = []string{"Linux", "Macos", "Windows", "FreeBSD"}
	knownArch       = []string{"x86", "x86_64", "armv7", "armv8"}
	knownCompilers  = []string{CompilerGCC, CompilerClang, CompilerAppleClang, CompilerVisualStudio}
	knownRuntimes   = []string{"", "MD", "MDd", "MT", "MTd"}
	knownBuildTypes = []string{"Release", "Debug"}
)

// Settings are the environment-derived identifiers of the target.
type Settings struct {
	OS              string `yaml:"os" json:"os"`
	Arch            string `yaml:"arch" json:"arch"`
	Compiler        string `yaml:"compiler" json:"compiler"`
	CompilerVersion string `yaml:"compiler.version" json:"compiler.version,omitempty"`
	// CompilerRuntime is the MSVC runtime linkage (MD, MDd, MT, MTd).
	CompilerRuntime string `yaml:"compiler.runtime" json:"compiler.runtime,omitempty"`
	BuildType       string `yaml:"build_type" json:"build_type"`
}

// BuildOptions are the user-supplied toggles of one invocation. They are
// read-only while the pipeline runs.
type BuildOptions struct {
	Shared bool `json:"shared"`
	// FPIC is ignored on targets without position-independent code (Windows).
	FPIC     bool     `json:"fPIC"`
	Settings Settings `json:"settings"`
}

// Defaults returns the options for the host: static, fPIC, Release.
func Defaults() BuildOptions {
	return BuildOptions{
		Shared: false,
		FPIC:   true,
		Settings: Settings{
			OS:        hostOS(runtime.GOOS),
			Arch:      hostArch(runtime.GOARCH),
			Compiler:  hostCompiler(runtime.GOOS),
			BuildType: "Release",
		},
	}
}

func hostOS(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "Macos"
	case "windows":
		return "Windows"
	case "freebsd":
		return "FreeBSD"
	}
	return goos
}

func hostArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "armv8"
	case "arm":
		return "armv7"
	}
	return goarch
}

func hostCompiler(goos string) string {
	switch goos {
	case "windows":
		return CompilerVisualStudio
	case "darwin":
		return CompilerAppleClang
	}
	return CompilerGCC
}

// HasFPIC reports whether the fPIC option exists for the target OS.
func (o BuildOptions) HasFPIC() bool {
	return o.Settings.OS != "Windows"
}

// PIC reports whether position-independent code is requested and meaningful.
func (o BuildOptions) PIC() bool {
	return o.FPIC && o.HasFPIC()
}

// IsVisualStudio reports whether the legacy project path applies.
func (o BuildOptions) IsVisualStudio() bool {
	return o.Settings.Compiler == CompilerVisualStudio
}

// StaticRuntime reports whether a static MSVC runtime was requested.
func (o BuildOptions) StaticRuntime() bool {
	return strings.HasPrefix(o.Settings.CompilerRuntime, "MT")
}

// Set assigns a setting or option from a key=value pair as given on the
// command line (os, arch, compiler, compiler.version, compiler.runtime,
// build_type, shared, fPIC).
func (o *BuildOptions) Set(key, value string) error {
	switch key {
	case "os":
		o.Settings.OS = value
	case "arch":
		o.Settings.Arch = value
	case "compiler":
		o.Settings.Compiler = value
	case "compiler.version":
		o.Settings.CompilerVersion = value
	case "compiler.runtime":
		o.Settings.CompilerRuntime = value
	case "build_type":
		o.Settings.BuildType = value
	case "shared", "fPIC":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", key, err)
		}
		if key == "shared" {
			o.Shared = b
		} else {
			o.FPIC = b
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Validate rejects unknown enumerations.
func (o BuildOptions) Validate() error {
	s := o.Settings
	checks := []struct {
		name  string
		value string
		known []string
	}{
		{"os", s.OS, knownOS},
		{"arch", s.Arch, knownArch},
		{"compiler", s.Compiler, knownCompilers},
		{"compiler.runtime", s.CompilerRuntime, knownRuntimes},
		{"build_type", s.BuildType, knownBuildTypes},
	}
	for _, c := range checks {
		if !slices.Contains(c.known, c.value) {
			return fmt.Errorf("invalid %s %q, want one of %s", c.name, c.value, strings.Join(c.known, ", "))
		}
	}
	if s.CompilerRuntime != "" && s.Compiler != CompilerVisualStudio {
		return fmt.Errorf("compiler.runtime %q requires compiler %q", s.CompilerRuntime, CompilerVisualStudio)
	}
	return nil
}

// Matrix renders the options as a build matrix. The fPIC option is left
// out where it does not exist.
func (o BuildOptions) Matrix() Matrix {
	s := o.Settings
	m := Matrix{
		Require: map[string][]string{
			"os":         {s.OS},
			"arch":       {s.Arch},
			"compiler":   {compilerKey(s)},
			"build_type": {s.BuildType},
		},
		Options: map[string][]string{
			"shared": {choose(o.Shared, "shared", "static")},
		},
	}
	if s.CompilerRuntime != "" {
		m.Require["runtime"] = []string{s.CompilerRuntime}
	}
	if o.HasFPIC() {
		m.Options["fPIC"] = []string{choose(o.FPIC, "pic", "nopic")}
	}
	return m
}

func compilerKey(s Settings) string {
	c := strings.ReplaceAll(s.Compiler, " ", "")
	if s.CompilerVersion != "" {
		c += s.CompilerVersion
	}
	return c
}

// PackageID identifies the binary package built for these options.
func (o BuildOptions) PackageID() string {
	return o.Matrix().String()
}

func choose(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
