// Package config loads the optional cpptool.toml project manifest:
// root header, owned set, output options, well-known type overrides
// and extra platform profiles. Command-line flags override everything
// loaded here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ousttrue/pycpptool/internal/layout"
)

// ManifestName is what the walk-up discovery looks for.
const ManifestName = "cpptool.toml"

// Manifest is one loaded cpptool.toml plus where it was found.
// Relative paths inside it resolve against Dir.
type Manifest struct {
	Path   string
	Dir    string
	Config Config

	// meta records which keys the file actually set, so partial
	// profiles only override what they define.
	meta toml.MetaData
}

// Config mirrors the manifest file.
type Config struct {
	Project  Project                `toml:"project"`
	Gen      Gen                    `toml:"gen"`
	Parse    Parse                  `toml:"parse"`
	Types    map[string]string      `toml:"types"`
	DLL      map[string]string      `toml:"dll"`
	Profiles map[string]profileSpec `toml:"profiles"`
}

// Project names the inputs of a run.
type Project struct {
	Root        string   `toml:"root"`
	Owned       []string `toml:"owned"`
	IncludeDirs []string `toml:"include_dirs"`
	Profile     string   `toml:"profile"`
	Prefix      string   `toml:"prefix"`
	Noise       []string `toml:"noise"`
}

// Gen holds generation defaults the gen command starts from.
type Gen struct {
	Out     string   `toml:"out"`
	Targets []string `toml:"targets"`
	Jobs    int      `toml:"jobs"`
	Cache   bool     `toml:"cache"`
}

// Parse holds parse-command defaults.
type Parse struct {
	Format string `toml:"format"`
}

// profileSpec is a partial profile; undefined keys inherit from the
// base profile (x64 unless base says otherwise).
type profileSpec struct {
	Base            string `toml:"base"`
	PointerSize     int    `toml:"pointer_size"`
	PointerAlign    int    `toml:"pointer_align"`
	LongSize        int    `toml:"long_size"`
	WCharSize       int    `toml:"wchar_size"`
	EnumSize        int    `toml:"enum_size"`
	LongDoubleSize  int    `toml:"long_double_size"`
	LongDoubleAlign int    `toml:"long_double_align"`
}

// Find walks from startDir toward the filesystem root looking for a
// manifest. ok is false when none exists on the way up.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("cannot resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("cannot stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadFrom finds and loads the nearest manifest. ok reports whether
// one was found; a found-but-invalid manifest is an error, not a miss.
func LoadFrom(startDir string) (*Manifest, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// Load reads and validates one manifest file.
func Load(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: cannot parse TOML: %w", path, err)
	}
	if !meta.IsDefined("project") {
		return nil, fmt.Errorf("%s: missing [project]", path)
	}
	for name, spelling := range cfg.Types {
		if strings.TrimSpace(spelling) == "" {
			return nil, fmt.Errorf("%s: [types].%s maps to an empty spelling", path, name)
		}
	}
	if cfg.Project.Profile != "" {
		if _, ok := resolveProfile(cfg, meta, cfg.Project.Profile); !ok {
			return nil, fmt.Errorf("%s: [project].profile %q is not a built-in profile or a [profiles] entry", path, cfg.Project.Profile)
		}
	}
	for name := range cfg.Profiles {
		if _, err := buildProfile(name, cfg.Profiles[name], meta); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return &Manifest{
		Path:   path,
		Dir:    filepath.Dir(path),
		Config: cfg,
		meta:   meta,
	}, nil
}

// Resolve turns a manifest-relative path into an absolute one.
// Absolute paths and the empty string pass through.
func (m *Manifest) Resolve(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.Dir, filepath.FromSlash(rel))
}

// ResolveAll maps Resolve over a path list.
func (m *Manifest) ResolveAll(rels []string) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = m.Resolve(r)
	}
	return out
}

// Profile resolves a profile name against the manifest's [profiles]
// entries first, then the built-ins.
func (m *Manifest) Profile(name string) (layout.Profile, bool) {
	return resolveProfile(m.Config, m.meta, name)
}

// ProfileNames lists every profile this manifest can resolve, built-ins
// first, extras sorted.
func (m *Manifest) ProfileNames() []string {
	names := layout.Names()
	extras := make([]string, 0, len(m.Config.Profiles))
	for name := range m.Config.Profiles {
		extras = append(extras, name)
	}
	sort.Strings(extras)
	return append(names, extras...)
}

func resolveProfile(cfg Config, meta toml.MetaData, name string) (layout.Profile, bool) {
	if spec, ok := cfg.Profiles[name]; ok {
		p, err := buildProfile(name, spec, meta)
		if err != nil {
			return layout.Profile{}, false
		}
		return p, true
	}
	return layout.ByName(name)
}

// buildProfile merges a partial spec over its base profile. Only keys
// the file defines override the base; every override must be positive.
func buildProfile(name string, spec profileSpec, meta toml.MetaData) (layout.Profile, error) {
	base := layout.WinX64
	if spec.Base != "" {
		b, ok := layout.ByName(spec.Base)
		if !ok {
			return layout.Profile{}, fmt.Errorf("[profiles.%s].base %q is not a built-in profile", name, spec.Base)
		}
		base = b
	}

	p := base
	p.Name = name
	fields := []struct {
		key string
		dst *int
		val int
	}{
		{"pointer_size", &p.PtrSize, spec.PointerSize},
		{"pointer_align", &p.PtrAlign, spec.PointerAlign},
		{"long_size", &p.LongSize, spec.LongSize},
		{"wchar_size", &p.WCharSize, spec.WCharSize},
		{"enum_size", &p.EnumSize, spec.EnumSize},
		{"long_double_size", &p.LongDoubleSize, spec.LongDoubleSize},
		{"long_double_align", &p.LongDoubleAlign, spec.LongDoubleAlign},
	}
	for _, f := range fields {
		if !meta.IsDefined("profiles", name, f.key) {
			continue
		}
		if f.val <= 0 {
			return layout.Profile{}, fmt.Errorf("[profiles.%s].%s must be positive, got %d", name, f.key, f.val)
		}
		*f.dst = f.val
	}
	return p, nil
}
