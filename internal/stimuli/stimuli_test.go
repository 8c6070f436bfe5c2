package stimuli_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/stimuli"
)

func newCatalog(t *testing.T) *stimuli.Catalog {
	t.Helper()
	c, err := stimuli.Load("", stimuli.WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	return c
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}

func TestLoadDefaults(t *testing.T) {
	c := newCatalog(t)

	assert.Len(t, c.Words(), 24)
	assert.Len(t, c.NonWords(), 24)
	assert.Equal(t, 50, c.DisplayTimeMS())

	cat, ok := c.Category("chien")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryWord, cat)

	cat, ok = c.Category("blixor")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryNonWord, cat)
}

func TestNewRejectsOverlappingSets(t *testing.T) {
	_, err := stimuli.New(stimuli.Tables{
		Words:    []string{"chat", "chien"},
		NonWords: []string{"chat"},
		Colors:   []stimuli.NamedColor{{Name: "rouge", Hex: "#FF0000"}},
	})
	require.Error(t, err)
}

func TestChoicesAlwaysContainStimulusFromSameCategory(t *testing.T) {
	c := newCatalog(t)

	for i := 0; i < 500; i++ {
		got, err := c.Choices("chien", 4, i%2 == 0)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, 1, countOf(got, "chien"))

		seen := map[string]bool{}
		for _, w := range got {
			assert.True(t, c.IsWord(w), "%q is not a word", w)
			assert.False(t, seen[w], "duplicate choice %q", w)
			seen[w] = true
		}
	}
}

func TestChoicesForEveryStimulus(t *testing.T) {
	c := newCatalog(t)

	all := append(c.Words(), c.NonWords()...)
	for _, s := range all {
		want, _ := c.Category(s)
		for _, color := range []bool{false, true} {
			got, err := c.Choices(s, 4, color)
			require.NoError(t, err)
			require.Len(t, got, 4)
			assert.Equal(t, 1, countOf(got, s))
			for _, w := range got {
				cat, ok := c.Category(w)
				require.True(t, ok)
				assert.Equal(t, want, cat, "choice %q for %q crosses categories", w, s)
			}
		}
	}
}

func TestChoicesShortCategoryReturnsFewer(t *testing.T) {
	c, err := stimuli.New(stimuli.Tables{
		Words:    []string{"chat", "chien"},
		NonWords: []string{"blixor", "frunez", "glopek", "tralux", "vokrim"},
		Colors:   []stimuli.NamedColor{{Name: "rouge", Hex: "#FF0000"}},
	})
	require.NoError(t, err)

	got, err := c.Choices("chat", 4, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat", "chien"}, got)
}

func TestChoicesPrefersSimilarDistractors(t *testing.T) {
	c, err := stimuli.New(stimuli.Tables{
		Words:    []string{"maison", "raison", "saison", "poisson", "table", "chaise", "arbre"},
		NonWords: []string{"blixor"},
		Colors:   []stimuli.NamedColor{{Name: "rouge", Hex: "#FF0000"}},
		SimilarDistractors: map[string][]string{
			"maison": {"raison", "saison", "blixor"},
		},
	}, stimuli.WithRand(rand.New(rand.NewPCG(7, 7))))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		got, err := c.Choices("maison", 3, false)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"maison", "raison", "saison"}, got)
	}
}

func TestChoicesUnknownStimulus(t *testing.T) {
	c := newCatalog(t)
	_, err := c.Choices("zzz", 4, false)
	require.ErrorIs(t, err, stimuli.ErrUnknownStimulus)
}

func TestParseHex(t *testing.T) {
	long, err := stimuli.ParseHex("#ff4444")
	require.NoError(t, err)
	assert.Equal(t, stimuli.RGB{R: 255, G: 68, B: 68}, long)

	short, err := stimuli.ParseHex("#F44")
	require.NoError(t, err)
	assert.Equal(t, long, short)

	_, err = stimuli.ParseHex("#12345")
	assert.Error(t, err)
	_, err = stimuli.ParseHex("#GGGGGG")
	assert.Error(t, err)
}

func TestVividRedExcludesPureRed(t *testing.T) {
	bg, _ := stimuli.ParseHex("#FF4444")
	red, _ := stimuli.ParseHex("#FF0000")
	assert.Less(t, stimuli.Distance(bg, red), stimuli.MinDistance)

	c := newCatalog(t)
	safe := stimuli.SafeTextColors(bg, c.Palette())
	assert.NotContains(t, safe, "#FF0000")
	assert.NotEmpty(t, safe)

	for i := 0; i < 200; i++ {
		got, err := c.PickTextColor("#FF4444")
		require.NoError(t, err)
		assert.NotEqual(t, "#FF0000", got)
	}
}

func TestPickTextColorIsAlwaysDistinct(t *testing.T) {
	c := newCatalog(t)
	backgrounds := []string{"#FF4444", "#44FF44", "#4444FF", "#FF44FF", "#44FFFF", "#FF8800", "#8844FF", "#FFFFFF", "#000000", "#808080"}

	for _, b := range backgrounds {
		bg, err := stimuli.ParseHex(b)
		require.NoError(t, err)
		for i := 0; i < 50; i++ {
			got, err := c.PickTextColor(b)
			require.NoError(t, err)
			if got == stimuli.Black || got == stimuli.White {
				continue
			}
			col, err := stimuli.ParseHex(got)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, stimuli.Distance(col, bg), stimuli.MinDistance, "text %s on %s", got, b)
		}
	}
}

func TestPickTextColorFallsBackByLuminance(t *testing.T) {
	reds, err := stimuli.New(stimuli.Tables{
		Words:    []string{"chat"},
		NonWords: []string{"blixor"},
		Colors: []stimuli.NamedColor{
			{Name: "rouge", Hex: "#FF0000"},
			{Name: "carmin", Hex: "#EE0000"},
		},
	})
	require.NoError(t, err)

	got, err := reds.PickTextColor("#EE1111")
	require.NoError(t, err)
	assert.Equal(t, stimuli.White, got)

	yellows, err := stimuli.New(stimuli.Tables{
		Words:    []string{"chat"},
		NonWords: []string{"blixor"},
		Colors: []stimuli.NamedColor{
			{Name: "jaune", Hex: "#FFFF00"},
			{Name: "or", Hex: "#FFEE00"},
		},
	})
	require.NoError(t, err)

	got, err = yellows.PickTextColor("#FFEE22")
	require.NoError(t, err)
	assert.Equal(t, stimuli.Black, got)
}

func TestTrialColorsPerBlock(t *testing.T) {
	c := newCatalog(t)

	text, bg, err := c.TrialColors(domain.BlockBW)
	require.NoError(t, err)
	assert.Equal(t, stimuli.Black, text)
	assert.Equal(t, stimuli.White, bg)

	text, bg, err = c.TrialColors(domain.BlockColor)
	require.NoError(t, err)
	assert.Contains(t, c.Palette(), text)
	assert.Equal(t, stimuli.White, bg)

	text, bg, err = c.TrialColors(domain.BlockColoredBG)
	require.NoError(t, err)
	assert.NotEqual(t, stimuli.White, bg)
	assert.NotEmpty(t, text)
}
