// Package selection implements the per-segment take elimination and ranking
// engine.
//
// Selection runs in stages. Hard gates reject implausible takes outright
// (duration against the pool median, text-length cutoff, missing trailing
// silence, echo and hiss ceilings, the upstream over-generation flag).
// Survivors are screened against hard fail profiles built from human
// verdicts, then ranked by a weighted score that rewards quality and
// penalizes echo, spectral flatness, tonal drift from the previous pick, and
// resemblance to soft-fail profiles. The gap between the top two scores sets
// the confidence grade.
//
// Two rules hold in every round: a take a human confirmed as passing is
// never eliminated by any heuristic, and a segment whose pool is fully
// eliminated is reported unresolvable with a least-bad fallback rather than
// picked silently. Identical inputs and tunables always produce an identical
// log.
package selection
