// Package scanner finds defects in an assembled track that listening alone
// would catch: the high-frequency energy spikes synthetic echo leaves
// behind, and segments whose spoken duration is implausible for their text.
//
// The echo scan high-passes the track, slides an RMS energy window across
// each segment's speech span, and flags the segment when any window towers
// over the segment's own median energy. Everything outside the manifest's
// speech spans (gaps, padding) is ignored, and a segment is flagged at most
// once. An empty report with a nil error is the explicit "no defects found";
// a scan error never means clean.
package scanner
