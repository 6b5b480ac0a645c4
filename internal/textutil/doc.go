// Package textutil provides text processing utilities for script segments
// and filesystem-safe naming.
//
// The primary use cases are:
//   - Counting speakable characters in segment text for pace estimation
//   - Sanitizing production and segment names for safe filesystem use
//
// Character counting normalizes text to NFC first so decomposed accents are
// counted once, then skips whitespace; the count feeds the chars-per-second
// duration checks.
package textutil
