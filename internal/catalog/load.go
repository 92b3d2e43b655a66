package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stride/internal/challenge"
)

// templateSpec is the on-disk template shape shared by CUE and YAML files.
type templateSpec struct {
	ID           string                 `json:"id,omitempty" yaml:"id"`
	Name         string                 `json:"name" yaml:"name"`
	Kind         string                 `json:"kind" yaml:"kind"`
	DurationDays int                    `json:"duration_days" yaml:"duration_days"`
	MetricKeys   []string               `json:"metric_keys" yaml:"metric_keys"`
	Target       float64                `json:"target,omitempty" yaml:"target"`
	TeamSize     int                    `json:"team_size,omitempty" yaml:"team_size"`
	TeamRule     string                 `json:"team_rule,omitempty" yaml:"team_rule"`
	RewardTiers  []challenge.RewardTier `json:"reward_tiers,omitempty" yaml:"reward_tiers"`
}

type yamlFile struct {
	Templates []templateSpec `yaml:"templates"`
}

// toTemplate converts the file shape. Missing ids fall back to fallbackID, then to a
// slug of the name.
func (s templateSpec) toTemplate(fallbackID string) (challenge.Template, error) {
	kind, err := challenge.ParseKind(s.Kind)
	if err != nil {
		return challenge.Template{}, err
	}
	id := s.ID
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		id = slug.Make(s.Name)
	}
	return challenge.Template{
		ID:           id,
		Name:         s.Name,
		Kind:         kind,
		DurationDays: s.DurationDays,
		MetricKeys:   s.MetricKeys,
		Target:       s.Target,
		TeamSize:     s.TeamSize,
		TeamRule:     challenge.TeamRule(s.TeamRule),
		RewardTiers:  s.RewardTiers,
	}, nil
}

// LoadDir loads every .cue, .yaml and .yml file directly inside dir into one
// catalog. Files are read in name order. Duplicate ids across files are an
// error.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	var templates []challenge.Template
	files := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		var got []challenge.Template
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".cue":
			got, err = loadCUEFile(path)
		case ".yaml", ".yml":
			got, err = loadYAMLFile(path)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		files++
		templates = append(templates, got...)
	}
	if files == 0 {
		return nil, challenge.Validation(fmt.Sprintf("no .cue or .yaml catalog files in %s", dir))
	}
	return New(templates...)
}

func loadYAMLFile(path string) ([]challenge.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	out, err := ParseYAML(f)
	if err != nil {
		return nil, withFile(err, path)
	}
	return out, nil
}

// ParseYAML decodes a YAML catalog document:
//
//	templates:
//	  - id: steps-week
//	    name: Steps Week
//	    kind: accumulative
//	    ...
//
// Unknown fields are rejected.
func ParseYAML(r io.Reader) ([]challenge.Template, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc yamlFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, challenge.Validation("parse yaml catalog").Wrap(err)
	}

	out := make([]challenge.Template, 0, len(doc.Templates))
	for _, s := range doc.Templates {
		t, err := s.toTemplate("")
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func loadCUEFile(path string) ([]challenge.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	out, err := ParseCUE(data, path)
	if err != nil {
		return nil, withFile(err, path)
	}
	return out, nil
}

// ParseCUE compiles a CUE catalog. Templates live under a top-level
// "template" struct keyed by id:
//
//	template: "steps-week": {
//		name: "Steps Week"
//		kind: "accumulative"
//		...
//	}
//
// The struct label is used as the id unless the body sets one.
func ParseCUE(src []byte, filename string) ([]challenge.Template, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, challenge.Validation("compile cue catalog").Wrap(err)
	}

	root := value.LookupPath(cue.ParsePath("template"))
	if !root.Exists() {
		return nil, nil
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, challenge.Validation("iterate cue templates").Wrap(err)
	}

	var out []challenge.Template
	for iter.Next() {
		label := iter.Label()
		var s templateSpec
		if err := iter.Value().Decode(&s); err != nil {
			return nil, challenge.Validation("decode cue template").With("template", label).Wrap(err)
		}
		t, err := s.toTemplate(label)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	slices.SortStableFunc(out, func(a, b challenge.Template) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func withFile(err error, path string) error {
	var de *challenge.Error
	if errors.As(err, &de) {
		return de.With("file", filepath.Base(path))
	}
	return fmt.Errorf("%s: %w", filepath.Base(path), err)
}

// Describe renders a one-line summary of t for listings.
func Describe(t challenge.Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %dd", t.Name, t.Kind, t.DurationDays)
	switch t.Kind {
	case challenge.KindAccumulative, challenge.KindGoalBased:
		fmt.Fprintf(&b, ", target %g", t.Target)
	}
	if t.TeamSize > 0 {
		fmt.Fprintf(&b, ", teams of %d", t.TeamSize)
	}
	b.WriteString(")")
	return b.String()
}
