package analysis

import (
	"math"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/config"
)

// Classification labels the geometry of the three final positions.
type Classification string

const (
	Convergent               Classification = "convergent"
	Divergent                Classification = "divergent"
	ObserverEquidistant      Classification = "observer-equidistant"
	ObserverLeansInterpreter Classification = "observer-leans-interpreter"
	ObserverLeansSkeptic     Classification = "observer-leans-skeptic"
)

// Verdict grades how far the observer sits from the midpoint of the debate.
type Verdict string

const (
	VerdictNovel Verdict = "novel"
	VerdictLeans Verdict = "leans"
	VerdictSided Verdict = "sided"
)

// Thresholds is the classification policy. It is copied into every report.
type Thresholds struct {
	Convergence         float64 `json:"convergence"`
	Divergence          float64 `json:"divergence"`
	EquidistanceEpsilon float64 `json:"equidistance_epsilon"`
	EquidistanceLean    float64 `json:"equidistance_lean"`
}

// DefaultThresholds returns the standard policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Convergence:         0.9,
		Divergence:          0.3,
		EquidistanceEpsilon: 0.1,
		EquidistanceLean:    0.2,
	}
}

// NewThresholds builds the policy from configuration.
func NewThresholds(c config.ThresholdConfig) Thresholds {
	return Thresholds{
		Convergence:         c.Convergence,
		Divergence:          c.Divergence,
		EquidistanceEpsilon: c.EquidistanceEpsilon,
		EquidistanceLean:    c.EquidistanceLean,
	}
}

// Pairs holds the three pairwise similarities.
type Pairs struct {
	InterpreterSkeptic  float64 `json:"interpreter_skeptic"`
	InterpreterObserver float64 `json:"interpreter_observer"`
	SkepticObserver     float64 `json:"skeptic_observer"`
}

// Equidistance is |sim(I,O) - sim(S,O)|.
func (p Pairs) Equidistance() float64 {
	return math.Abs(p.InterpreterObserver - p.SkepticObserver)
}

// ObserverLeans names the persona the observer is closer to, or "neither".
func (p Pairs) ObserverLeans() string {
	switch {
	case p.InterpreterObserver > p.SkepticObserver:
		return "interpreter"
	case p.SkepticObserver > p.InterpreterObserver:
		return "skeptic"
	default:
		return "neither"
	}
}

// Classify applies the policy in order: convergent, divergent,
// observer-equidistant, then whichever side the observer leans to.
func (t Thresholds) Classify(p Pairs) Classification {
	if p.InterpreterSkeptic >= t.Convergence &&
		p.InterpreterObserver >= t.Convergence &&
		p.SkepticObserver >= t.Convergence {
		return Convergent
	}
	if p.InterpreterSkeptic < t.Divergence {
		return Divergent
	}
	if p.Equidistance() <= t.EquidistanceEpsilon {
		return ObserverEquidistant
	}
	if p.InterpreterObserver > p.SkepticObserver {
		return ObserverLeansInterpreter
	}
	return ObserverLeansSkeptic
}

// Verdict grades the observer's equidistance.
func (t Thresholds) Verdict(p Pairs) Verdict {
	eq := p.Equidistance()
	switch {
	case eq < t.EquidistanceEpsilon:
		return VerdictNovel
	case eq < t.EquidistanceLean:
		return VerdictLeans
	default:
		return VerdictSided
	}
}
