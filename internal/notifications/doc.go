// Package notifications delivers rebuild-loop events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Enumerated event types cover the run milestones so the control
// loop can emit consistent, user-friendly messages without duplicating HTTP
// glue. Per-event config flags suppress round updates, review prompts, or
// error alerts independently.
//
// Extend this package if you need alternative transports; all loop code
// depends only on the simple Service interface.
package notifications
