package locator

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects which candidate rules apply.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode converts a config or build-flag string into a Mode.
// The empty string maps to ModeDevelopment.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", string(ModeDevelopment):
		return ModeDevelopment, nil
	case "prod", "release", string(ModeProduction):
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Env is the input every candidate is derived from.
type Env struct {
	// ExeDir is the directory of the running executable. Empty if unknown.
	ExeDir string

	// WorkDir is the process working directory. Empty if unknown.
	WorkDir string

	// Product is the human-readable product name, e.g. "8085 Simulator".
	Product string

	// Binary is the platform binary name, suffix included.
	Binary string
}

// Builder derives zero or more candidate paths from an Env.
type Builder func(Env) []string

// Profile is the per-platform candidate recipe.
type Profile struct {
	GOOS         string
	BinarySuffix string
	Development  []Builder
	Production   []Builder
}

// BinaryName appends the platform suffix to base.
func (p Profile) BinaryName(base string) string {
	return base + p.BinarySuffix
}

// Builders returns the rules for mode in priority order.
func (p Profile) Builders(mode Mode) []Builder {
	if mode == ModeProduction {
		return p.Production
	}
	return p.Development
}

// ProfileFor returns the candidate recipe for goos.
func ProfileFor(goos string) Profile {
	p := Profile{
		GOOS:        goos,
		Development: []Builder{projectBuildOutput, workDirResources},
		Production:  []Builder{relocatableBundle, besideExecutable},
	}

	switch goos {
	case "windows":
		p.BinarySuffix = ".exe"
	case "darwin":
		p.Production = append(p.Production, appBundleResources)
	case "linux":
		p.Production = append(p.Production, systemInstall)
	}

	return p
}

// backendSubpath is where the bundled backend lives under a resources root.
func backendSubpath(bin string) []string {
	return []string{"resources", "backend", bin}
}

// under joins base and parts, or returns nil when base is unknown.
func under(base string, parts ...string) []string {
	if base == "" {
		return nil
	}
	return []string{filepath.Join(append([]string{base}, parts...)...)}
}

func projectBuildOutput(e Env) []string {
	return under(e.ExeDir, append([]string{"..", ".."}, backendSubpath(e.Binary)...)...)
}

func workDirResources(e Env) []string {
	return under(e.WorkDir, backendSubpath(e.Binary)...)
}

func relocatableBundle(e Env) []string {
	return under(e.ExeDir, append([]string{"..", "..", "usr", "lib", e.Product}, backendSubpath(e.Binary)...)...)
}

func besideExecutable(e Env) []string {
	return under(e.ExeDir, backendSubpath(e.Binary)...)
}

func appBundleResources(e Env) []string {
	return under(e.ExeDir, "..", "Resources", "backend", e.Binary)
}

// systemInstall tries /usr/lib/<product> verbatim, hyphenated, then
// underscored and lower-cased. Unix separators are used on purpose.
func systemInstall(e Env) []string {
	variants := ProductVariants(e.Product)
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		out = append(out, "/usr/lib/"+v+"/resources/backend/"+e.Binary)
	}
	return out
}

// ProductVariants returns the install directory spellings of a product name.
func ProductVariants(product string) []string {
	return []string{
		product,
		strings.ReplaceAll(product, " ", "-"),
		strings.ToLower(strings.ReplaceAll(product, " ", "_")),
	}
}
