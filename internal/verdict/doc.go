// Package verdict loads human review judgements for take candidates.
//
// Reviewers drop YAML files into the production's reviews directory; each
// file carries a reviewed_at timestamp and a list of per-take verdicts
// (pass, soft fail, hard fail). Files accumulate over time and are never
// rewritten by this system. When the same take is judged more than once the
// later record is authoritative, ordered by reviewed_at and then filename.
//
// The aggregated History answers the two questions selection cares about:
// which versions a human confirmed as passing (exempt from every heuristic
// filter), and which versions failed and at what severity (the raw material
// for fail profiles).
package verdict
