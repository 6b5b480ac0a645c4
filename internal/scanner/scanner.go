package scanner

import (
	"context"
	"log/slog"
	"sort"

	"retake/internal/assembly"
	"retake/internal/config"
	"retake/internal/logging"
	"retake/internal/media/wavfile"
	"retake/internal/production"
	"retake/internal/services"
)

// Scanner inspects an assembled track for defects.
type Scanner interface {
	Scan(ctx context.Context, trackPath string, manifest assembly.Manifest, segments []production.Segment) (Report, error)
}

// SpikeScanner is the bundled Scanner: a high-pass energy-ratio test for
// echo signatures plus a chars-per-second plausibility band for durations.
type SpikeScanner struct {
	highPassHz        float64
	windowMs          float64
	energyRatio       float64
	paceSlackSeconds  float64
	maxCharsPerSecond float64
	minCharsPerSecond float64
	logger            *slog.Logger
}

// NewSpikeScanner builds the bundled scanner from config.
func NewSpikeScanner(cfg *config.Config, logger *slog.Logger) *SpikeScanner {
	return &SpikeScanner{
		highPassHz:        cfg.Scanner.HighPassHz,
		windowMs:          cfg.Scanner.WindowMs,
		energyRatio:       cfg.Scanner.EnergyRatio,
		paceSlackSeconds:  cfg.Scanner.PaceSlackSeconds,
		maxCharsPerSecond: cfg.Selection.MaxCharsPerSecond,
		minCharsPerSecond: cfg.Selection.MinCharsPerSecond,
		logger:            logging.NewComponentLogger(logger, "scanner"),
	}
}

// Scan reads the track, restricts attention to the manifest's speech spans,
// and reports segments with echo-signature spikes or implausible durations.
func (s *SpikeScanner) Scan(ctx context.Context, trackPath string, manifest assembly.Manifest, segments []production.Segment) (Report, error) {
	track, err := wavfile.Read(trackPath)
	if err != nil {
		return Report{}, services.Wrap(services.ErrMedia, "scanner", "scan", "read track", err)
	}
	filter, err := newHighPass(track.SampleRate, s.highPassHz)
	if err != nil {
		return Report{}, services.Wrap(services.ErrValidation, "scanner", "scan", "build high-pass filter", err)
	}

	logger := logging.WithContext(ctx, s.logger)
	filtered := filter.process(track.Samples)

	var echo, duration []int
	for i := range segments {
		if err := ctx.Err(); err != nil {
			return Report{}, services.Wrap(services.ErrTimeout, "scanner", "scan", "canceled", err)
		}
		segment := &segments[i]
		span, ok := manifest.SpanFor(segment.Index)
		if !ok {
			logger.Debug("segment missing from timing manifest",
				logging.Args(logging.Int(logging.FieldSegment, segment.Index))...)
			continue
		}

		start, end := sampleRange(span, track.SampleRate, len(filtered))
		if s.hasEnergySpike(filtered[start:end], track.SampleRate) {
			echo = append(echo, segment.Index)
			logger.Debug("echo-signature spike",
				logging.Args(
					logging.Int(logging.FieldSegment, segment.Index),
					logging.Float64("span_start", span.Start),
					logging.Float64("span_end", span.End),
				)...)
		}
		if s.durationImplausible(segment.Chars(), span.End-span.Start) {
			duration = append(duration, segment.Index)
			logger.Debug("implausible segment duration",
				logging.Args(
					logging.Int(logging.FieldSegment, segment.Index),
					logging.Int("chars", segment.Chars()),
					logging.Float64("seconds", span.End-span.Start),
				)...)
		}
	}

	report := Report{EchoSegments: sortedUnique(echo), DurationSegments: sortedUnique(duration)}
	logger.Debug("scan complete",
		logging.Args(
			logging.Int("segments", len(segments)),
			logging.Int("echo_flags", len(report.EchoSegments)),
			logging.Int("duration_flags", len(report.DurationSegments)),
		)...)
	return report, nil
}

// hasEnergySpike slides half-overlapping windows across one segment's
// filtered samples and compares each window's energy to the segment median.
func (s *SpikeScanner) hasEnergySpike(samples []float64, rate int) bool {
	if len(samples) == 0 {
		return false
	}
	window := int(s.windowMs / 1000 * float64(rate))
	if window <= 0 || window > len(samples) {
		window = len(samples)
	}
	hop := window / 2
	if hop < 1 {
		hop = 1
	}

	var energies []float64
	for start := 0; start+window <= len(samples); start += hop {
		energies = append(energies, meanSquare(samples[start:start+window]))
	}
	if len(energies) == 0 {
		return false
	}

	median := medianOf(energies)
	for _, energy := range energies {
		if energy > median*s.energyRatio {
			return true
		}
	}
	return false
}

func (s *SpikeScanner) durationImplausible(chars int, seconds float64) bool {
	if chars <= 0 {
		return false
	}
	if s.maxCharsPerSecond > 0 {
		if minSeconds := float64(chars)/s.maxCharsPerSecond - s.paceSlackSeconds; seconds < minSeconds {
			return true
		}
	}
	if s.minCharsPerSecond > 0 {
		if maxSeconds := float64(chars)/s.minCharsPerSecond + s.paceSlackSeconds; seconds > maxSeconds {
			return true
		}
	}
	return false
}

func sampleRange(span assembly.SegmentSpan, rate, limit int) (int, int) {
	start := int(span.Start * float64(rate))
	end := int(span.End * float64(rate))
	if start < 0 {
		start = 0
	}
	if end > limit {
		end = limit
	}
	if end < start {
		end = start
	}
	return start, end
}

func meanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, sample := range samples {
		sum += sample * sample
	}
	return sum / float64(len(samples))
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
