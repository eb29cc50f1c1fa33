// Package knowledge holds the static clinical tables used by the safety
// rule engine and by the research fallback: drug contraindications, drug
// interactions and keyword-routed treatment guidance.
//
// Tables are built once at startup and never mutated afterwards, so a
// single *Tables can be shared by any number of concurrent pipeline runs.
package knowledge

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// GeneralTopic is reported when no guidance bucket matches a query.
const GeneralTopic = "general"

var ErrInvalidTables = errors.New("invalid knowledge tables")

// ContraindicationRule lists the conditions a drug conflicts with.
type ContraindicationRule struct {
	Drug       string   `yaml:"drug"`
	Conditions []string `yaml:"conditions"`
	Reason     string   `yaml:"reason"`
}

// InteractionRule lists the drugs known to interact with Drug.
type InteractionRule struct {
	Drug          string   `yaml:"drug"`
	InteractsWith []string `yaml:"interacts_with"`
}

// GuidanceRule is one keyword bucket of the research fallback.
type GuidanceRule struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
	Text     string   `yaml:"text"`
}

type document struct {
	Contraindications []ContraindicationRule `yaml:"contraindications"`
	Interactions      []InteractionRule      `yaml:"interactions"`
	Guidance          []GuidanceRule         `yaml:"guidance"`
	DefaultGuidance   string                 `yaml:"default_guidance"`
}

// Tables is the read-only view over the loaded knowledge.
type Tables struct {
	contraindications []ContraindicationRule
	interactions      []InteractionRule
	guidance          []GuidanceRule
	defaultGuidance   string
}

// Default parses the tables compiled into the binary.
func Default() (*Tables, error) {
	return Load(bytes.NewReader(defaultTables))
}

// LoadFile parses tables from a YAML file on disk.
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge tables: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a YAML tables document. Drug names, condition
// terms and keywords are lower-cased, and the interaction table is made
// symmetric: for every declared pair A→B a reverse entry B→A is added
// after the declared entries, in declaration order.
func Load(r io.Reader) (*Tables, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode knowledge tables: %w", err)
	}

	t := &Tables{defaultGuidance: strings.TrimSpace(doc.DefaultGuidance)}

	seen := make(map[string]bool, len(doc.Contraindications))
	for i, rule := range doc.Contraindications {
		drug := normalize(rule.Drug)
		switch {
		case drug == "":
			return nil, fmt.Errorf("%w: contraindication #%d has no drug", ErrInvalidTables, i)
		case seen[drug]:
			return nil, fmt.Errorf("%w: duplicate contraindication for %q", ErrInvalidTables, drug)
		case len(rule.Conditions) == 0:
			return nil, fmt.Errorf("%w: contraindication %q has no conditions", ErrInvalidTables, drug)
		case strings.TrimSpace(rule.Reason) == "":
			return nil, fmt.Errorf("%w: contraindication %q has no reason", ErrInvalidTables, drug)
		}
		seen[drug] = true
		conditions, err := normalizeAll(rule.Conditions)
		if err != nil {
			return nil, fmt.Errorf("%w: contraindication %q: %v", ErrInvalidTables, drug, err)
		}
		t.contraindications = append(t.contraindications, ContraindicationRule{
			Drug:       drug,
			Conditions: conditions,
			Reason:     strings.TrimSpace(rule.Reason),
		})
	}
	if len(t.contraindications) == 0 {
		return nil, fmt.Errorf("%w: no contraindications", ErrInvalidTables)
	}

	interactions, err := symmetricInteractions(doc.Interactions)
	if err != nil {
		return nil, err
	}
	t.interactions = interactions

	for i, g := range doc.Guidance {
		keywords, err := normalizeAll(g.Keywords)
		if err != nil || len(keywords) == 0 {
			return nil, fmt.Errorf("%w: guidance #%d needs keywords", ErrInvalidTables, i)
		}
		text := strings.TrimSpace(g.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: guidance #%d has no text", ErrInvalidTables, i)
		}
		topic := strings.TrimSpace(g.Topic)
		if topic == "" {
			topic = keywords[0]
		}
		t.guidance = append(t.guidance, GuidanceRule{Topic: topic, Keywords: keywords, Text: text})
	}
	if len(t.guidance) == 0 {
		return nil, fmt.Errorf("%w: no guidance", ErrInvalidTables)
	}
	if t.defaultGuidance == "" {
		return nil, fmt.Errorf("%w: default_guidance is empty", ErrInvalidTables)
	}

	return t, nil
}

func symmetricInteractions(declared []InteractionRule) ([]InteractionRule, error) {
	var (
		out   []InteractionRule
		index = make(map[string]int)
	)
	add := func(drug, other string) {
		i, ok := index[drug]
		if !ok {
			index[drug] = len(out)
			out = append(out, InteractionRule{Drug: drug})
			i = len(out) - 1
		}
		if !slices.Contains(out[i].InteractsWith, other) {
			out[i].InteractsWith = append(out[i].InteractsWith, other)
		}
	}

	for i, rule := range declared {
		drug := normalize(rule.Drug)
		if drug == "" {
			return nil, fmt.Errorf("%w: interaction #%d has no drug", ErrInvalidTables, i)
		}
		others, err := normalizeAll(rule.InteractsWith)
		if err != nil || len(others) == 0 {
			return nil, fmt.Errorf("%w: interaction %q needs interacting drugs", ErrInvalidTables, drug)
		}
		for _, other := range others {
			add(drug, other)
		}
	}
	for _, rule := range declared {
		drug := normalize(rule.Drug)
		for _, other := range rule.InteractsWith {
			add(normalize(other), drug)
		}
	}
	return out, nil
}

// Contraindications iterates the contraindication index in load order.
func (t *Tables) Contraindications() iter.Seq[ContraindicationRule] {
	return slices.Values(t.contraindications)
}

// Interactions iterates the interaction index in load order.
func (t *Tables) Interactions() iter.Seq[InteractionRule] {
	return slices.Values(t.interactions)
}

// Guidance iterates the fallback buckets in priority order.
func (t *Tables) Guidance() iter.Seq[GuidanceRule] {
	return slices.Values(t.guidance)
}

// ResolveGuidance picks the fallback text for a query. Buckets are tried in
// priority order and the first bucket with a keyword contained in the
// lower-cased query wins; otherwise the default referral text is returned
// under GeneralTopic.
func (t *Tables) ResolveGuidance(query string) (topic, text string) {
	q := strings.ToLower(query)
	for _, g := range t.guidance {
		for _, kw := range g.Keywords {
			if strings.Contains(q, kw) {
				return g.Topic, g.Text
			}
		}
	}
	return GeneralTopic, t.defaultGuidance
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			return nil, errors.New("empty entry")
		}
		out = append(out, n)
	}
	return out, nil
}
