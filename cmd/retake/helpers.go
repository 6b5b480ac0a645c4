package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"retake/internal/session"
)

func formatInts(values []int) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ", ")
}

func formatStrings(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func formatPicks(picks map[int]int) string {
	if len(picks) == 0 {
		return "-"
	}
	segments := make([]int, 0, len(picks))
	for segment := range picks {
		segments = append(segments, segment)
	}
	sort.Ints(segments)
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		parts = append(parts, fmt.Sprintf("%d:v%02d", segment, picks[segment]))
	}
	return strings.Join(parts, " ")
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTimestamp(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return formatTimestamp(*ts)
}

func sessionStatusKind(status session.Status) statusKind {
	switch status {
	case session.StatusPassing:
		return statusOK
	case session.StatusStalled, session.StatusExhausted:
		return statusWarn
	case session.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}
