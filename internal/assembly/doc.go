// Package assembly builds a production track from per-segment take picks
// and reports the quality gates evaluated on the result.
//
// The bundled WaveAssembler is deliberately simple: it concatenates the
// picked takes with a configurable inter-segment gap and opening/closing
// padding, at a single uniform sample rate. Levelling, ambient beds, and
// resampling belong to external tooling; the rebuild loop only needs a
// track, a timing manifest naming where each segment's speech sits, and a
// gate report. Gates are marked automated or manual: manual gates (overall
// duration feel, ambience) surface in the report for a human but never fail
// a rebuild round on their own.
package assembly
