package scoring

import (
	"math"

	"retake/internal/production"
)

// Scorer supplies the metric vector for a take and the tonal distance
// between two takes. The selection engine takes a Scorer rather than reading
// candidate fields directly so alternative analyzers can be swapped in.
type Scorer interface {
	Metrics(c production.Candidate) Vector
	TonalDistance(a, b production.Candidate) float64
}

// AnalyzerScorer is the default Scorer. Metrics come straight from the
// candidate's precomputed analyzer fields; tonal distance is the Euclidean
// distance between the spectral-shape metrics (flatness, contrast), the
// timbre continuity signal available without reopening the waveforms.
type AnalyzerScorer struct{}

func (AnalyzerScorer) Metrics(c production.Candidate) Vector {
	return Vector{
		EchoRisk: c.EchoRisk,
		HissDB:   c.HissDB,
		Flatness: c.Flatness,
		Contrast: c.Contrast,
		Quality:  c.Quality,
	}
}

func (AnalyzerScorer) TonalDistance(a, b production.Candidate) float64 {
	df := a.Flatness - b.Flatness
	dc := a.Contrast - b.Contrast
	return math.Sqrt(df*df + dc*dc)
}
