// Package sentiment scores text polarity. Scores are a pure function of the
// input text, so re-scoring a comment always yields the same row.
package sentiment

// Scores holds the polarity of one text. Compound is in [-1, 1]; Pos, Neu
// and Neg are proportions that sum to about 1.
type Scores struct {
	Compound float64 `json:"compound"`
	Pos      float64 `json:"pos"`
	Neu      float64 `json:"neu"`
	Neg      float64 `json:"neg"`
}

type Scorer interface {
	// Model identifies the scorer in SentimentScore.model_name.
	Model() string
	Score(text string) Scores
}
