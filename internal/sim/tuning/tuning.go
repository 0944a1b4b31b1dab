package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"firemaze.ai/internal/sim/search"
	"firemaze.ai/internal/sim/strategy"
)

//go:embed experiment.schema.json
var schemaJSON string

const schemaURL = "experiment.schema.json"

// Experiment is the YAML document that drives cmd/mazelab.
type Experiment struct {
	Name    string `yaml:"name" json:"name"`
	Dim     int    `yaml:"dim" json:"dim"`
	Seed    int64  `yaml:"seed" json:"seed"`
	Workers int    `yaml:"workers" json:"workers"`
	Trials  int    `yaml:"trials" json:"trials"`

	Density      Range   `yaml:"density" json:"density"`
	Flammability float64 `yaml:"flammability" json:"flammability"`
	MaxTicks     int     `yaml:"max_ticks" json:"max_ticks"`
	MaxAttempts  int     `yaml:"max_attempts" json:"max_attempts"`

	Strategies []string `yaml:"strategies" json:"strategies"`
	Algorithms []string `yaml:"algorithms" json:"algorithms"`

	DataDir  string `yaml:"data_dir" json:"data_dir"`
	LogTicks bool   `yaml:"log_ticks" json:"log_ticks"`
}

// Range is an inclusive sweep over obstacle density.
type Range struct {
	From float64 `yaml:"from" json:"from"`
	To   float64 `yaml:"to" json:"to"`
	Step float64 `yaml:"step" json:"step"`
}

// Points expands the range. Values are rounded to 1e-9 so 0.1 steps print cleanly.
func (r Range) Points() []float64 {
	if r.Step <= 0 || r.To < r.From {
		return []float64{r.From}
	}
	n := int(math.Floor((r.To-r.From)/r.Step+1e-9)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := r.From + float64(i)*r.Step
		out = append(out, math.Round(v*1e9)/1e9)
	}
	return out
}

func Defaults() Experiment {
	return Experiment{
		Name:         "default",
		Dim:          50,
		Seed:         1337,
		Workers:      runtime.NumCPU(),
		Trials:       100,
		Density:      Range{From: 0.1, To: 0.9, Step: 0.1},
		Flammability: 0.3,
		MaxAttempts:  1000,
		Strategies:   strategy.Names(),
		Algorithms:   search.PathFinderNames(),
		DataDir:      "./data",
	}
}

// Load reads an experiment file on top of Defaults. An empty path returns the
// defaults.
func Load(path string) (Experiment, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := ValidateDocument(raw); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Experiment) Normalize() {
	if c == nil {
		return
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1000
	}
	if c.Density.Step <= 0 {
		c.Density.Step = 0.1
	}
	c.Strategies = normalizeNames(c.Strategies)
	c.Algorithms = normalizeNames(c.Algorithms)
	if len(c.Strategies) == 0 {
		c.Strategies = strategy.Names()
	}
	if len(c.Algorithms) == 0 {
		c.Algorithms = search.PathFinderNames()
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
}

func normalizeNames(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (c Experiment) Validate() error {
	if c.Dim < 2 {
		return fmt.Errorf("dim %d: must be >= 2", c.Dim)
	}
	if c.Trials < 1 {
		return fmt.Errorf("trials %d: must be >= 1", c.Trials)
	}
	d := c.Density
	if d.From < 0 || d.To > 1 || d.From > d.To {
		return fmt.Errorf("density [%v,%v]: must satisfy 0 <= from <= to <= 1", d.From, d.To)
	}
	if !(c.Flammability > 0 && c.Flammability < 1) {
		return fmt.Errorf("flammability %v: must be within (0,1)", c.Flammability)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("max_ticks %d: must be >= 0", c.MaxTicks)
	}
	for _, s := range c.Strategies {
		if _, ok := strategy.Lookup(s); !ok {
			return fmt.Errorf("unknown strategy %q (known: %s)", s, strings.Join(strategy.Names(), ", "))
		}
	}
	for _, a := range c.Algorithms {
		if _, ok := search.PathFinder(a); !ok {
			return fmt.Errorf("unknown algorithm %q (known: %s)", a, strings.Join(search.PathFinderNames(), ", "))
		}
	}
	return nil
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// ValidateDocument checks a raw YAML document against the embedded JSON schema.
// It catches misspelled keys and wrong types before decoding.
func ValidateDocument(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so numbers and maps have the types the validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
