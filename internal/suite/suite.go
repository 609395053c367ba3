// Package suite loads benchmark suites from YAML and turns their entries into
// identifiers and runnable process commands.
package suite

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/benchkit/internal/model"
)

// Suite is a named collection of benchmark definitions.
type Suite struct {
	Name       string      `yaml:"name"`
	Benchmarks []Benchmark `yaml:"benchmarks"`

	// baseDir resolves relative Dir entries. It is the directory of the
	// suite file.
	baseDir string
}

// Benchmark describes one benchmark and the parameter space it runs over.
//
// Command arguments, Env values and Dir may reference parameters as $name or
// ${name}. Besides matrix keys, the variables name, environment and workdir
// are always defined.
type Benchmark struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Environment  string   `yaml:"environment"`
	Environments []string `yaml:"environments"`

	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`
	Dir     string            `yaml:"dir"`

	TimeoutS int                 `yaml:"timeout_s"`
	Matrix   map[string][]string `yaml:"matrix"`
}

// builtinVars are always available for expansion and cannot be matrix keys.
var builtinVars = []string{"name", "environment", "workdir"}

// Load reads and validates the suite file at path.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite %s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving suite directory: %w", err)
	}
	s, err := Parse(data, abs)
	if err != nil {
		return nil, fmt.Errorf("parsing suite %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a suite document. baseDir resolves relative
// benchmark directories.
func Parse(data []byte, baseDir string) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	s.baseDir = baseDir
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Suite) validate() error {
	if len(s.Benchmarks) == 0 {
		return fmt.Errorf("suite %q has no benchmarks", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Benchmarks))
	for i, b := range s.Benchmarks {
		if b.Name == "" {
			return fmt.Errorf("benchmark #%d: name is required", i+1)
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("benchmark %q: defined more than once", b.Name)
		}
		seen[b.Name] = struct{}{}

		if len(b.Command) == 0 {
			return fmt.Errorf("benchmark %q: command is required", b.Name)
		}
		if b.Environment != "" && len(b.Environments) > 0 {
			return fmt.Errorf("benchmark %q: set environment or environments, not both", b.Name)
		}
		if b.TimeoutS < 0 {
			return fmt.Errorf("benchmark %q: timeout_s must not be negative", b.Name)
		}
		for key, values := range b.Matrix {
			if slices.Contains(builtinVars, key) {
				return fmt.Errorf("benchmark %q: matrix key %q is reserved", b.Name, key)
			}
			if len(values) == 0 {
				return fmt.Errorf("benchmark %q: matrix key %q has no values", b.Name, key)
			}
		}
		// Every reference must resolve for some combination, and all
		// combinations share the same keys.
		known := slices.Concat(builtinVars, slices.Collect(maps.Keys(b.Matrix)))
		for _, arg := range b.templates() {
			if missing := undefinedVars(arg, known); len(missing) > 0 {
				return fmt.Errorf("benchmark %q: undefined variable(s) %s in %q",
					b.Name, strings.Join(missing, ", "), arg)
			}
		}
	}
	return nil
}

// templates returns every string of b that is subject to expansion.
func (b *Benchmark) templates() []string {
	out := slices.Clone(b.Command)
	for _, k := range slices.Sorted(maps.Keys(b.Env)) {
		out = append(out, b.Env[k])
	}
	if b.Dir != "" {
		out = append(out, b.Dir)
	}
	return out
}

func (b *Benchmark) environments() []string {
	if len(b.Environments) > 0 {
		return b.Environments
	}
	return []string{b.Environment}
}

func (b *Benchmark) timeout() *time.Duration {
	if b.TimeoutS <= 0 {
		return nil
	}
	d := time.Duration(b.TimeoutS) * time.Second
	return &d
}

// Identifiers expands every benchmark over its environments and the cartesian
// product of its matrix. The order is deterministic: benchmarks in file order,
// then environments in listed order, then matrix combinations with keys
// sorted and values in listed order, the last key varying fastest.
func (s *Suite) Identifiers() []model.Identifier {
	var ids []model.Identifier
	for i := range s.Benchmarks {
		b := &s.Benchmarks[i]
		combos := expandMatrix(b.Matrix)
		for _, env := range b.environments() {
			for _, params := range combos {
				ids = append(ids, model.Identifier{
					Name:        b.Name,
					Environment: env,
					Params:      params,
					Timeout:     b.timeout(),
					Description: b.Description,
				})
			}
		}
	}
	return ids
}

// Lookup returns the benchmark definition with the given name.
func (s *Suite) Lookup(name string) (*Benchmark, bool) {
	for i := range s.Benchmarks {
		if s.Benchmarks[i].Name == name {
			return &s.Benchmarks[i], true
		}
	}
	return nil, false
}

// expandMatrix returns the cartesian product of matrix. An empty matrix
// yields a single combination with no parameters.
func expandMatrix(matrix map[string][]string) []map[string]string {
	combos := []map[string]string{nil}
	for _, key := range slices.Sorted(maps.Keys(matrix)) {
		next := make([]map[string]string, 0, len(combos)*len(matrix[key]))
		for _, base := range combos {
			for _, v := range matrix[key] {
				c := make(map[string]string, len(base)+1)
				maps.Copy(c, base)
				c[key] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// undefinedVars lists the variables referenced by s that are not in known.
func undefinedVars(s string, known []string) []string {
	var missing []string
	os.Expand(s, func(name string) string {
		if !slices.Contains(known, name) && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return ""
	})
	return missing
}
