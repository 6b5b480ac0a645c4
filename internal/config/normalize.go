package config

import (
	"fmt"
	"strings"
)

// normalize expands paths and canonicalizes string fields after decoding.
func (c *Config) normalize() error {
	pathFields := []struct {
		name  string
		value *string
	}{
		{"paths.workspace_dir", &c.Paths.WorkspaceDir},
		{"paths.staging_dir", &c.Paths.StagingDir},
		{"paths.session_dir", &c.Paths.SessionDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range pathFields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}

	c.Selection.ProfileKeys = normalizeList(c.Selection.ProfileKeys)
	if len(c.Selection.ProfileKeys) == 0 {
		c.Selection.ProfileKeys = defaultProfileKeys()
	}

	c.Rebuild.NonAutomatableGates = normalizeList(c.Rebuild.NonAutomatableGates)

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}

	return nil
}

// normalizeList trims entries, lowercases them, and drops empties while
// preserving order.
func normalizeList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
