package sentiment

import (
	"math"
	"testing"
)

const scoreTolerance = 5e-4

func TestVaderPolarity(t *testing.T) {
	v := NewVader()
	cases := []struct {
		text string
		sign int
	}{
		{"Jalen Green was great tonight", 1},
		{"what an amazing game, love this team", 1},
		{"that was the worst defense I have ever seen", -1},
		{"absolutely terrible shot selection", -1},
		{"he scored at the start of the game", 0},
		{"", 0},
		{"   ", 0},
	}
	for _, tc := range cases {
		got := v.Score(tc.text)
		switch {
		case tc.sign > 0 && got.Compound <= 0:
			t.Fatalf("%q compound=%v want>0", tc.text, got.Compound)
		case tc.sign < 0 && got.Compound >= 0:
			t.Fatalf("%q compound=%v want<0", tc.text, got.Compound)
		case tc.sign == 0 && got.Compound != 0:
			t.Fatalf("%q compound=%v want=0", tc.text, got.Compound)
		}
	}
}

// Values published with the vaderSentiment reference implementation.
func TestVaderReferenceScores(t *testing.T) {
	v := NewVader()
	cases := []struct {
		text string
		want Scores
	}{
		{"The book was good.", Scores{Compound: 0.4404, Pos: 0.492, Neu: 0.508, Neg: 0}},
		{"VADER is not smart, handsome, nor funny.", Scores{Compound: -0.7424, Pos: 0, Neu: 0.354, Neg: 0.646}},
		{"Today SUX!", Scores{Compound: -0.5461, Pos: 0, Neu: 0.221, Neg: 0.779}},
		{"Not bad at all", Scores{Compound: 0.431, Pos: 0.487, Neu: 0.513, Neg: 0}},
		{"The plot was good, but the characters are uncompelling and the dialog is not great.", Scores{Compound: -0.7042, Pos: 0.094, Neu: 0.579, Neg: 0.327}},
	}
	for _, tc := range cases {
		got := v.Score(tc.text)
		if math.Abs(got.Compound-tc.want.Compound) > scoreTolerance ||
			math.Abs(got.Pos-tc.want.Pos) > scoreTolerance ||
			math.Abs(got.Neu-tc.want.Neu) > scoreTolerance ||
			math.Abs(got.Neg-tc.want.Neg) > scoreTolerance {
			t.Fatalf("%q scores=%+v want=%+v", tc.text, got, tc.want)
		}
	}
}

func TestVaderFullLexicon(t *testing.T) {
	v := NewVader()
	if got := v.Score("he played well").Compound; got <= 0 {
		t.Fatalf("played compound=%v want>0", got)
	}
	if got := v.Score("that was an embarrassing effort").Compound; got >= 0 {
		t.Fatalf("embarrassing compound=%v want<0", got)
	}
}

func TestVaderRounding(t *testing.T) {
	got := NewVader().Score("Jalen Green was great tonight")
	// single lexicon hit of 3.1 normalized by sqrt(x^2+15)
	want := round(3.1/math.Sqrt(3.1*3.1+15), 4)
	if got.Compound != want {
		t.Fatalf("compound=%v want=%v", got.Compound, want)
	}
	if got.Compound != round(got.Compound, 4) || got.Pos != round(got.Pos, 3) {
		t.Fatalf("unrounded scores=%+v", got)
	}
}

func TestVaderEmphasis(t *testing.T) {
	v := NewVader()
	base := v.Score("that dunk was great").Compound
	booster := v.Score("that dunk was very great").Compound
	exclaim := v.Score("that dunk was great!!!").Compound
	caps := v.Score("that dunk was GREAT").Compound
	if booster <= base || exclaim <= base || caps <= base {
		t.Fatalf("base=%v booster=%v exclaim=%v caps=%v", base, booster, exclaim, caps)
	}
}

func TestVaderDeterministic(t *testing.T) {
	v := NewVader()
	text := "Sengun is SO good, but the bench was awful!!"
	first := v.Score(text)
	for i := 0; i < 5; i++ {
		if got := v.Score(text); got != first {
			t.Fatalf("run %d=%+v want=%+v", i, got, first)
		}
	}
	if v.Model() != ModelVader {
		t.Fatalf("model=%s", v.Model())
	}
	sum := first.Pos + first.Neu + first.Neg
	if math.Abs(sum-1) > 0.01 {
		t.Fatalf("proportions sum=%v", sum)
	}
}
