// Package project loads mypl.yml, the manifest that names a program's entry
// source, its bytecode output and the VM settings used to run it.
package project

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mypl/pkg/utils"
	"mypl/pkg/vm"
)

// FileName is the manifest file looked up by FindManifest.
const FileName = "mypl.yml"

// ErrNoManifest is returned by FindManifest when no directory up to the
// filesystem root holds a manifest.
var ErrNoManifest = errors.New("manifest: no " + FileName + " found")

// Manifest represents the parsed contents of mypl.yml. Paths are kept as
// written; use the *Path methods to resolve them against Dir.
type Manifest struct {
	Path    string
	Dir     string
	Name    string
	Main    string
	Output  string
	VM      VMSettings
	Sources []string
}

// VMSettings configures the VM that runs the compiled program.
type VMSettings struct {
	ObjectBase int64
	Trace      bool
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

type manifestFile struct {
	Name    string     `yaml:"name"`
	Main    string     `yaml:"main"`
	Output  string     `yaml:"output"`
	VM      vmYAML     `yaml:"vm"`
	Sources stringList `yaml:"sources"`
}

type vmYAML struct {
	ObjectBase *int64 `yaml:"object_base"`
	Trace      bool   `yaml:"trace"`
}

// LoadManifest parses mypl.yml from disk, returning a validated manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	return decode(file, absPath)
}

// ParseManifest decodes a manifest read from r as if it were stored at path.
func ParseManifest(r io.Reader, path string) (*Manifest, error) {
	return decode(r, path)
}

func decode(r io.Reader, path string) (*Manifest, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", path)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}

	m := raw.toManifest(path)
	if err := m.validate(raw); err != nil {
		return nil, err
	}
	return m, nil
}

// FindManifest walks from dir towards the root and returns the first
// mypl.yml it finds.
func FindManifest(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("manifest: resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNoManifest
		}
		abs = parent
	}
}

func (mf manifestFile) toManifest(path string) *Manifest {
	m := &Manifest{
		Path:    path,
		Dir:     filepath.Dir(path),
		Name:    strings.TrimSpace(mf.Name),
		Main:    strings.TrimSpace(mf.Main),
		Output:  strings.TrimSpace(mf.Output),
		VM:      VMSettings{ObjectBase: vm.DefaultObjectBase, Trace: mf.VM.Trace},
		Sources: mf.Sources.Clone(),
	}
	if mf.VM.ObjectBase != nil {
		m.VM.ObjectBase = *mf.VM.ObjectBase
	}
	return m
}

func (m *Manifest) validate(raw manifestFile) error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	switch {
	case m.Main == "":
		errs.Issues = append(errs.Issues, "main must name the entry source")
	case !isSource(m.Main):
		errs.Issues = append(errs.Issues, fmt.Sprintf("main %q must be a .mypl or .masm file", m.Main))
	}
	if m.Output != "" && filepath.Ext(m.Output) != ".mbc" {
		errs.Issues = append(errs.Issues, fmt.Sprintf("output %q must have the .mbc extension", m.Output))
	}
	if raw.VM.ObjectBase != nil && *raw.VM.ObjectBase < 0 {
		errs.Issues = append(errs.Issues, "vm.object_base must not be negative")
	}
	for i, src := range m.Sources {
		if !isSource(src) {
			errs.Issues = append(errs.Issues, fmt.Sprintf("sources[%d] %q must be a .mypl or .masm file", i, src))
		}
	}

	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

func isSource(path string) bool {
	switch filepath.Ext(path) {
	case ".mypl", ".masm":
		return true
	}
	return false
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// MainPath returns the entry source resolved against the manifest directory.
func (m *Manifest) MainPath() string { return m.resolve(m.Main) }

// OutputPath returns the image path, defaulting to the entry source with
// the .mbc extension.
func (m *Manifest) OutputPath() string {
	if m.Output != "" {
		return m.resolve(m.Output)
	}
	return utils.ReplaceExt(m.MainPath(), ".mbc")
}

// SourcePaths returns the entry source followed by every extra source, each
// resolved and listed once.
func (m *Manifest) SourcePaths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range append([]string{m.Main}, m.Sources...) {
		abs := m.resolve(p)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

type stringList []string

func (l stringList) Clone() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// UnmarshalYAML accepts either a single string or a sequence of strings.
func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = stringList{strings.TrimSpace(value.Value)}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var str string
			if err := node.Decode(&str); err != nil {
				return err
			}
			items = append(items, str)
		}
		*l = stringList(items)
		return nil
	case yaml.AliasNode:
		return l.UnmarshalYAML(value.Alias)
	case 0:
		*l = nil
		return nil
	default:
		return fmt.Errorf("manifest: expected string or sequence for sources but found %s", value.ShortTag())
	}
}
