package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Alias maps an import specifier prefix to a directory.
type Alias struct {
	Key  string `yaml:"key"`
	Path string `yaml:"path"`
}

// Aliases are checked in order.
type Aliases []Alias

// Resolve maps an import specifier to a filesystem path using the first
// alias whose key equals it or prefixes it followed by "/".
func (a Aliases) Resolve(specifier string) (string, bool) {
	for _, al := range a {
		if specifier == al.Key {
			return al.Path, true
		}
		if rest, ok := strings.CutPrefix(specifier, al.Key+"/"); ok {
			return filepath.Join(al.Path, filepath.FromSlash(rest)), true
		}
	}
	return "", false
}

type BuildOptions struct {
	OutDir                string `yaml:"out_dir"`
	CSSCodeSplit          bool   `yaml:"css_code_split"`
	ChunkSizeWarningLimit int    `yaml:"chunk_size_warning_limit"` // KiB
}

type OptimizeDeps struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Project is the front-end project the proxy serves.
type Project struct {
	Root         string       `yaml:"root"`
	Base         string       `yaml:"base"`
	Aliases      Aliases      `yaml:"aliases"`
	Build        BuildOptions `yaml:"build"`
	OptimizeDeps OptimizeDeps `yaml:"optimize_deps"`
}

// NewProject derives project data from settings. OutDir may start with
// one of the project aliases (e.g. "~root/build"); other relative paths
// are resolved against the project root.
func NewProject(s Settings) (Project, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return Project{}, fmt.Errorf("root: %w", err)
	}
	aliases := Aliases{
		{Key: "@", Path: filepath.Join(root, "src")},
		{Key: "~", Path: filepath.Join(root, "src", "assets")},
		{Key: "~root", Path: root},
	}
	outDir, ok := aliases.Resolve(filepath.ToSlash(s.OutDir))
	if !ok {
		outDir = s.OutDir
		if !filepath.IsAbs(outDir) {
			outDir = filepath.Join(root, outDir)
		}
	}
	return Project{
		Root:    root,
		Base:    s.PublicPath,
		Aliases: aliases,
		Build: BuildOptions{
			OutDir:                outDir,
			CSSCodeSplit:          false,
			ChunkSizeWarningLimit: 2048,
		},
		OptimizeDeps: OptimizeDeps{Include: []string{}, Exclude: []string{}},
	}, nil
}
