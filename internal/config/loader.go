package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

type Source struct {
	Kind   SourceKind
	Name   string // for default/env
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> last writer source
	Files   []string          // all loaded files, in load order
}

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "OUTPUTCTL_CONFIG"

// EnvBackend overrides the backend key when set.
const EnvBackend = "OUTPUTCTL_BACKEND"

// DefaultConfigPath returns $OUTPUTCTL_CONFIG or the XDG config location.
func DefaultConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	path, err := xdg.ConfigFile(filepath.Join("outputctl", "config.yaml"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	return path, nil
}

// Load reads the merged configuration from the standard location and returns an
// effective config ready for use.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes. A missing file yields defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	return loadFromPath(path, os.LookupEnv)
}
func loadFromPath(path string, lookup func(string) (string, bool)) (*LoadResult, error) {
	res := &LoadResult{Sources: map[string]Source{}}
	var raw RawConfig

	found, err := fileExists(path)
	if err != nil {
		return nil, err
	}
	if found {
		w := &includeWalker{visited: map[string]bool{}}
		raw, res.Sources, err = w.load(path)
		if err != nil {
			return nil, err
		}
		res.Files = w.files
	}

	if v, ok := lookup(EnvBackend); ok {
		if v = strings.TrimSpace(v); v != "" {
			raw.Backend = &v
			res.Sources["backend"] = Source{Kind: SourceEnv, Name: EnvBackend}
		}
	}

	cfg, err := BuildEffectiveConfig(raw)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, withSource(err, res.Sources)
	}
	res.Config = cfg
	return res, nil
}

// includeWalker merges a config file with everything it includes. Included
// files are merged first in listed order, then the including file on top.
type includeWalker struct {
	visited map[string]bool
	chain   []string
	files   []string
}

func (w *includeWalker) load(path string) (RawConfig, map[string]Source, error) {
	file, err := resolveFile(path)
	if err != nil {
		return RawConfig{}, nil, err
	}
	if slices.Contains(w.chain, file) {
		return RawConfig{}, nil, fmt.Errorf("include cycle detected: %s -> %s", strings.Join(w.chain, " -> "), file)
	}
	if w.visited[file] {
		return RawConfig{}, map[string]Source{}, nil
	}
	w.visited[file] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return RawConfig{}, nil, fmt.Errorf("read %s: %w", file, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return RawConfig{}, nil, fmt.Errorf("parse %s: %w", file, err)
	}
	var own RawConfig
	if err := strictDecode(data, &own); err != nil {
		return RawConfig{}, nil, fmt.Errorf("%s: %w", file, err)
	}

	merged := RawConfig{}
	sources := map[string]Source{}

	w.chain = append(w.chain, file)
	for _, ref := range includeNodes(&root) {
		at := fileSource(file, ref)
		targets, err := includeTargets(file, ref.Value)
		if err != nil {
			return RawConfig{}, nil, fmt.Errorf("%s:%d:%d: include %q: %w", at.File, at.Line, at.Column, ref.Value, err)
		}
		for _, target := range targets {
			inc, incSources, err := w.load(target)
			if err != nil {
				return RawConfig{}, nil, err
			}
			merged = merged.merge(inc)
			maps.Copy(sources, incSources)
		}
	}
	w.chain = w.chain[:len(w.chain)-1]

	merged = merged.merge(own)
	maps.Copy(sources, keySources(&root, file))
	w.files = append(w.files, file)
	return merged, sources, nil
}

func strictDecode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// resolveFile makes path absolute and follows symlinks when it can, so the
// same file reached by two routes is only merged once.
func resolveFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	if target, err := filepath.EvalSymlinks(abs); err == nil {
		return target, nil
	}
	return abs, nil
}

// includeTargets turns one include entry into files. A directory contributes
// its *.yaml and *.yml files in name order.
func includeTargets(from, entry string) ([]string, error) {
	if entry == "" {
		return nil, errors.New("path is empty")
	}
	entry, err := expandHome(entry)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(filepath.Dir(from), entry)
	}

	info, err := os.Stat(entry)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{entry}, nil
	}
	dirents, err := os.ReadDir(entry)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range dirents {
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".yaml", ".yml":
			if !d.IsDir() {
				out = append(out, filepath.Join(entry, d.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func fileSource(file string, n *yaml.Node) Source {
	return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
}

func topMapping(root *yaml.Node) *yaml.Node {
	n := root
	if n != nil && n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

// keySources records where every dotted key path is written in file.
// Sequences are tracked as a whole.
func keySources(root *yaml.Node, file string) map[string]Source {
	out := map[string]Source{}
	var walk func(m *yaml.Node, prefix string)
	walk = func(m *yaml.Node, prefix string) {
		for i := 0; i+1 < len(m.Content); i += 2 {
			key, val := m.Content[i].Value, m.Content[i+1]
			if prefix != "" {
				key = prefix + "." + key
			}
			out[key] = fileSource(file, val)
			if val.Kind == yaml.MappingNode {
				walk(val, key)
			}
		}
	}
	if m := topMapping(root); m != nil {
		walk(m, "")
	}
	return out
}

// includeNodes returns the scalar entries of the top-level include key,
// which may be a single string or a list.
func includeNodes(root *yaml.Node) []*yaml.Node {
	m := topMapping(root)
	if m == nil {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != "include" {
			continue
		}
		val := m.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			return []*yaml.Node{val}
		case yaml.SequenceNode:
			var out []*yaml.Node
			for _, item := range val.Content {
				if item.Kind == yaml.ScalarNode {
					out = append(out, item)
				}
			}
			return out
		}
		return nil
	}
	return nil
}

// withSource points a validation error at the file position that set the
// offending key.
func withSource(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}

func expandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rest), nil
}
