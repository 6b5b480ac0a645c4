// Package config loads, validates, and defaults the TOML configuration for
// retake.
//
// Every tunable the selection engine and rebuild loop consume lives here:
// elimination thresholds, ranking weights, assembler and scanner parameters,
// round caps, and notification settings. The loaded Config is treated as
// immutable for the lifetime of a run; components receive the sections they
// need by value so alternate tunings can be tested in isolation.
//
// Configuration is resolved from an explicit --config path, then
// ~/.config/retake/config.toml, then ./retake.toml. Missing files fall back
// to defaults so read-only commands work out of the box.
package config
