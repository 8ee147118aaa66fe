package recipe

// Pinned digests of the upstream artifacts.
const (
	theoraSHA256    = "b6ae1ee2fa3d42ac489287d3ec34c5885730b1296f0801ae577a35193d3affbc"
	theoraDefURL    = "https://raw.githubusercontent.com/xiph/theora/fa5707d68c2a4338d58aa8b6afc95539ba89fecb/lib/theora.def"
	theoraDefSHA256 = "6f4a67b09ef0d4ae8b4cf41ad4d1f2bd8c6c9b4e0a3cd4f47c6ad0b6c85a3a9e"
)

// Theora returns the package spec of libtheora 1.1.1.
func Theora() *PackageSpec {
	return &PackageSpec{
		Name:         "theora",
		Version:      "1.1.1",
		Description:  "Theora is a free and open video compression format from the Xiph.org Foundation",
		Homepage:     "https://www.theora.org/",
		License:      "BSD-3-Clause",
		SourceURL:    "http://downloads.xiph.org/releases/theora/libtheora-{version}.tar.bz2",
		SourceSHA256: theoraSHA256,
		ArchiveDir:   "libtheora-{version}",
		Requires: []Requirement{
			{Name: "ogg", Constraint: ">=1.3.3 <2.0.0"},
			{Name: "vorbis", Constraint: ">=1.3.6 <2.0.0"},
		},
		AuxFiles: []AuxFile{
			// module definition of the Visual Studio projects, missing
			// from the release archive
			{URL: theoraDefURL, SHA256: theoraDefSHA256, Dest: "lib/theora.def", Compiler: CompilerVisualStudio},
		},
	}
}

// CompilerPatches returns the source edits needed by the target toolchain.
func CompilerPatches(opts BuildOptions) []Patch {
	if !opts.IsVisualStudio() {
		return nil
	}
	return []Patch{
		{
			// C2491: definition of dllimport function not allowed
			File:   "examples/encoder_example.c",
			Old:    "static double rint(double x)",
			New:    "static double rint_(double x)",
			Strict: true,
		},
	}
}

// DeclaredLibs returns the library names the package is expected to
// provide for opts.
func DeclaredLibs(spec *PackageSpec, opts BuildOptions) []string {
	if opts.IsVisualStudio() {
		if opts.Shared {
			return []string{"lib" + spec.Name}
		}
		return []string{"lib" + spec.Name + "_static"}
	}
	return []string{spec.Name}
}
