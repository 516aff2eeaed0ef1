// Package scoring holds the composite scorers: pure functions that combine
// sub signals into a bounded 0-10 score or an explicit inconclusive result.
package scoring

import (
	"math"
	"strconv"
)

// Score is an integer in [0,10] or the Inconclusive sentinel. Inconclusive
// means "insufficient evidence" and is distinct from a numeric zero.
type Score int

const (
	MinScore Score = 0
	MaxScore Score = 10

	Inconclusive Score = -1
)

// Conclusive reports whether the score carries a determined value.
func (s Score) Conclusive() bool {
	return s != Inconclusive
}

func (s Score) String() string {
	if !s.Conclusive() {
		return "inconclusive"
	}

	return strconv.Itoa(int(s))
}

// clamp rounds and bounds a running value into [0,10].
func clamp(value float64) Score {
	rounded := Score(math.Round(value))
	if rounded < MinScore {
		return MinScore
	}
	if rounded > MaxScore {
		return MaxScore
	}

	return rounded
}
