package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

//go:embed seed/default.yaml seed/schema.json
var seedFS embed.FS

const schemaURL = "schema://geoquiz/seed.json"

// Seed is the YAML document a catalog is loaded from.
type Seed struct {
	Version    string         `yaml:"version" json:"version"`
	Categories []SeedCategory `yaml:"categories" json:"categories"`
	Theorems   []SeedTheorem  `yaml:"theorems" json:"theorems"`
	Questions  []SeedQuestion `yaml:"questions" json:"questions"`
	Answers    []SeedAnswer   `yaml:"answers" json:"answers"`
}

type SeedCategory struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type SeedTheorem struct {
	ID         int            `yaml:"id" json:"id"`
	Text       string         `yaml:"text" json:"text"`
	Category   *int           `yaml:"category,omitempty" json:"category,omitempty"`
	Active     *bool          `yaml:"active,omitempty" json:"active,omitempty"`
	Categories []SeedStrength `yaml:"categories,omitempty" json:"categories,omitempty"`
	Questions  []int          `yaml:"questions,omitempty" json:"questions,omitempty"`
}

type SeedStrength struct {
	ID       int     `yaml:"id" json:"id"`
	Strength float64 `yaml:"strength" json:"strength"`
}

type SeedQuestion struct {
	ID          int              `yaml:"id" json:"id"`
	Text        string           `yaml:"text" json:"text"`
	Difficulty  int              `yaml:"difficulty" json:"difficulty"`
	Active      *bool            `yaml:"active,omitempty" json:"active,omitempty"`
	Multipliers []SeedMultiplier `yaml:"multipliers,omitempty" json:"multipliers,omitempty"`
}

type SeedMultiplier struct {
	Category   int        `yaml:"category" json:"category"`
	Answer     AnswerType `yaml:"answer" json:"answer"`
	Multiplier float64    `yaml:"multiplier" json:"multiplier"`
}

type SeedAnswer struct {
	ID   int        `yaml:"id" json:"id"`
	Text string     `yaml:"text" json:"text"`
	Type AnswerType `yaml:"type" json:"type"`
}

// ParseSeed decodes a YAML seed document and validates it against the
// embedded JSON schema before any catalog row is built from it.
func ParseSeed(raw []byte) (*Seed, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}

	// The schema validator expects JSON-shaped values.
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert seed to json: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(docJSON))
	if err != nil {
		return nil, fmt.Errorf("convert seed to json: %w", err)
	}

	schema, err := seedSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("seed schema validation failed: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if !semver.IsValid(seed.Version) {
		return nil, fmt.Errorf("seed version %q is not a valid semantic version", seed.Version)
	}
	return &seed, nil
}

// ReadSeedFile reads and parses a seed file from disk.
func ReadSeedFile(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// DefaultSeed returns the embedded default triangle catalog.
func DefaultSeed() (*Seed, error) {
	raw, err := seedFS.ReadFile("seed/default.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded seed: %w", err)
	}
	return ParseSeed(raw)
}

// NewerThan reports whether the seed should replace a stored catalog at
// version stored. An empty stored version is older than any seed.
func (s *Seed) NewerThan(stored string) bool {
	if stored == "" || !semver.IsValid(stored) {
		return true
	}
	return semver.Compare(s.Version, stored) > 0
}

// Data flattens the seed into catalog rows.
func (s *Seed) Data() Data {
	data := Data{Version: s.Version}

	for _, c := range s.Categories {
		data.Categories = append(data.Categories, Category{ID: c.ID, Name: c.Name})
	}

	for _, t := range s.Theorems {
		th := Theorem{ID: t.ID, Text: t.Text, Active: t.Active == nil || *t.Active}
		if t.Category != nil {
			cat := *t.Category
			th.CategoryID = &cat
		}
		data.Theorems = append(data.Theorems, th)
		for _, l := range t.Categories {
			data.CategoryLinks = append(data.CategoryLinks, CategoryLink{TheoremID: t.ID, CategoryID: l.ID, Strength: l.Strength})
		}
		for _, qid := range t.Questions {
			data.QuestionLinks = append(data.QuestionLinks, QuestionLink{TheoremID: t.ID, QuestionID: qid})
		}
	}

	for _, q := range s.Questions {
		data.Questions = append(data.Questions, Question{
			ID:         q.ID,
			Text:       q.Text,
			Difficulty: q.Difficulty,
			Active:     q.Active == nil || *q.Active,
		})
		for _, m := range q.Multipliers {
			data.Multipliers = append(data.Multipliers, AnswerMultiplier{
				QuestionID: q.ID,
				CategoryID: m.Category,
				AnswerType: m.Answer,
				Multiplier: m.Multiplier,
			})
		}
	}

	for _, a := range s.Answers {
		data.AnswerOptions = append(data.AnswerOptions, AnswerOption{ID: a.ID, Text: a.Text, Type: a.Type})
	}

	return data
}

// Catalog builds an in-memory catalog from the seed.
func (s *Seed) Catalog() (*Catalog, error) {
	return New(s.Data())
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// seedSchema compiles the embedded schema once per process.
func seedSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := seedFS.ReadFile("seed/schema.json")
		if err != nil {
			compileErr = fmt.Errorf("read seed schema: %w", err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = fmt.Errorf("parse seed schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}
