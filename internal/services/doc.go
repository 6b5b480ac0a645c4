// Package services defines shared utilities consumed by the selection engine,
// the assembler, and the rebuild loop.
//
// Key responsibilities:
//   - Context helpers that stamp production names, session identifiers, round
//     numbers, and segment indexes for logging.
//   - Structured error markers plus the Wrap helper that distinguish failures
//     a human must resolve from failures another round may fix.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
