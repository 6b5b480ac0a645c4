// Package production models the script and take pool for one audio
// production: ordered segments of narration text, each with a set of
// synthesized candidate takes and their precomputed synthesis metrics.
//
// The take manifest (takes.json) is written by the generation pipeline and
// treated as read-only input here. Loading normalizes ordering, validates
// uniqueness of segment indexes and take versions, and can backfill the
// tail-silence metric from the waveforms when the generator omitted it.
//
// Segments and candidates are immutable once loaded; only selection outcomes
// change across rebuild rounds.
package production
