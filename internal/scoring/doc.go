// Package scoring provides the metric vectors and similarity math shared by
// fail-profile matching and candidate ranking.
//
// A Vector names the analyzer metrics a take is judged on. Similarity between
// vectors is a symmetric per-metric relative-difference test, not a learned
// classifier: two takes are "similar" when more than half of their comparable
// metrics fall within a relative tolerance. SoftSimilarity turns the same
// idea into a continuous [0,1] penalty against the nearest soft-fail profile.
//
// The Scorer interface decouples the selection engine from where metrics come
// from. AnalyzerScorer, the default, reads the precomputed analyzer fields
// off the candidate itself.
package scoring
