package sentiment

import (
	"math"
	"strings"

	"github.com/jonreiter/govader"
)

const ModelVader = "vader"

// Vader scores with the full VADER lexicon and rule set. Results are rounded
// the way the reference vaderSentiment output is: compound to four places,
// proportions to three.
type Vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVader loads the embedded lexicon; build one and share it.
func NewVader() *Vader {
	return &Vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *Vader) Model() string { return ModelVader }

func (v *Vader) Score(text string) Scores {
	if strings.TrimSpace(text) == "" {
		return Scores{}
	}
	s := v.analyzer.PolarityScores(text)
	return Scores{
		Compound: round(s.Compound, 4),
		Pos:      round(s.Positive, 3),
		Neu:      round(s.Neutral, 3),
		Neg:      round(s.Negative, 3),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
