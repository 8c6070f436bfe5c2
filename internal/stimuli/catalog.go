// Package stimuli holds the static experiment tables and the two pieces of
// trial logic built on them: distractor selection and text colour choice.
package stimuli

import (
	_ "embed"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

//go:embed tables.yaml
var defaultTables []byte

var ErrUnknownStimulus = errors.New("stimulus is not in the catalog")

type NamedColor struct {
	Name string `yaml:"name"`
	Hex  string `yaml:"hex"`
}

type ColorAssociation struct {
	Color string   `yaml:"color"`
	Words []string `yaml:"words"`
}

// Tables is the on-disk shape of the stimulus tables.
type Tables struct {
	DisplayTimeMS      int                 `yaml:"display_time_ms"`
	Words              []string            `yaml:"words"`
	NonWords           []string            `yaml:"non_words"`
	Colors             []NamedColor        `yaml:"colors"`
	Backgrounds        []string            `yaml:"backgrounds"`
	ColorAssociations  []ColorAssociation  `yaml:"color_associations"`
	ColorNames         []string            `yaml:"color_names"`
	SimilarDistractors map[string][]string `yaml:"similar_distractors"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	t        Tables
	category map[string]domain.Category
	all      []string
	rng      randSource
}

type Option func(*Catalog)

// WithRand makes every random decision come from r. Useful for reproducible tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) {
		c.rng = &lockedRand{r: r}
	}
}

// Load parses the tables at path, or the embedded defaults when path is empty.
func Load(path string, opts ...Option) (*Catalog, error) {
	data := defaultTables
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading stimulus tables %s", path)
		}
		data = b
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "parsing stimulus tables")
	}
	return New(t, opts...)
}

// New validates t and builds a Catalog. Word and non-word sets must be
// non-empty and disjoint; every colour must be a valid hex value.
func New(t Tables, opts ...Option) (*Catalog, error) {
	if len(t.Words) == 0 || len(t.NonWords) == 0 {
		return nil, errors.New("stimulus tables need at least one word and one non-word")
	}
	if len(t.Colors) == 0 {
		return nil, errors.New("stimulus tables need at least one text colour")
	}
	if t.DisplayTimeMS <= 0 {
		t.DisplayTimeMS = 50
	}

	c := &Catalog{
		t:        t,
		category: make(map[string]domain.Category, len(t.Words)+len(t.NonWords)),
		rng:      globalRand{},
	}
	for _, w := range t.Words {
		c.category[w] = domain.CategoryWord
	}
	for _, w := range t.NonWords {
		if _, dup := c.category[w]; dup {
			return nil, errors.Errorf("stimulus %q is listed as both word and non-word", w)
		}
		c.category[w] = domain.CategoryNonWord
	}
	c.all = append(append(make([]string, 0, len(c.category)), t.Words...), t.NonWords...)

	for _, col := range t.Colors {
		if _, err := ParseHex(col.Hex); err != nil {
			return nil, errors.Wrapf(err, "colour %s", col.Name)
		}
	}
	for _, bg := range t.Backgrounds {
		if _, err := ParseHex(bg); err != nil {
			return nil, errors.Wrap(err, "background palette")
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Category reports which set s belongs to.
func (c *Catalog) Category(s string) (domain.Category, bool) {
	cat, ok := c.category[s]
	return cat, ok
}

func (c *Catalog) IsWord(s string) bool {
	return c.category[s] == domain.CategoryWord
}

func (c *Catalog) Words() []string    { return append([]string(nil), c.t.Words...) }
func (c *Catalog) NonWords() []string { return append([]string(nil), c.t.NonWords...) }

func (c *Catalog) DisplayTimeMS() int { return c.t.DisplayTimeMS }

// Palette returns the text colour hex values in table order.
func (c *Catalog) Palette() []string {
	out := make([]string, 0, len(c.t.Colors))
	for _, col := range c.t.Colors {
		out = append(out, col.Hex)
	}
	return out
}

// RandomStimulus draws uniformly from words and non-words together.
func (c *Catalog) RandomStimulus() string {
	return c.all[c.rng.IntN(len(c.all))]
}

func (c *Catalog) pool(cat domain.Category) []string {
	if cat == domain.CategoryWord {
		return c.t.Words
	}
	return c.t.NonWords
}

type randSource interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// globalRand uses the concurrency-safe top-level math/rand/v2 functions.
type globalRand struct{}

func (globalRand) IntN(n int) int                     { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
