package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"retake/internal/config"
	"retake/internal/logging"
	"retake/internal/media/wavfile"
	"retake/internal/production"
	"retake/internal/services"
)

// ambienceFloorDBFS is the loudest an inter-segment bed may peak before the
// ambience gate reports it for review.
const ambienceFloorDBFS = -50.0

// clipThreshold marks a sample as full-scale. 16-bit sources clamp just
// below 1.0, so the threshold sits under that.
const clipThreshold = 0.999

// Assembler turns per-segment picks into a single production track.
type Assembler interface {
	Assemble(ctx context.Context, prod *production.Manifest, picks map[int]int, outPath string) (BuildReport, error)
}

// WaveAssembler concatenates picked takes with silence gaps and padding at
// one uniform sample rate. It never resamples: a take at the wrong rate is a
// validation error for upstream generation to fix.
type WaveAssembler struct {
	sampleRate        int
	gapMs             float64
	openingPadMs      float64
	closingPadMs      float64
	peakCeilingDBFS   float64
	maxCharsPerSecond float64
	minCharsPerSecond float64
	paceSlackSeconds  float64
	logger            *slog.Logger
}

// NewWaveAssembler builds the bundled assembler from config.
func NewWaveAssembler(cfg *config.Config, logger *slog.Logger) *WaveAssembler {
	return &WaveAssembler{
		sampleRate:        cfg.Assembly.SampleRate,
		gapMs:             cfg.Assembly.GapMs,
		openingPadMs:      cfg.Assembly.OpeningPadMs,
		closingPadMs:      cfg.Assembly.ClosingPadMs,
		peakCeilingDBFS:   cfg.Assembly.PeakCeilingDBFS,
		maxCharsPerSecond: cfg.Selection.MaxCharsPerSecond,
		minCharsPerSecond: cfg.Selection.MinCharsPerSecond,
		paceSlackSeconds:  cfg.Scanner.PaceSlackSeconds,
		logger:            logging.NewComponentLogger(logger, "assembly"),
	}
}

// Assemble reads every picked take, concatenates them in segment order, and
// writes the track to outPath. Every segment must have a pick; partial
// assemblies are never produced.
func (a *WaveAssembler) Assemble(ctx context.Context, prod *production.Manifest, picks map[int]int, outPath string) (BuildReport, error) {
	if prod == nil || len(prod.Segments) == 0 {
		return BuildReport{}, services.Wrap(services.ErrValidation, "assembly", "assemble", "no segments to assemble", nil)
	}

	logger := logging.WithContext(ctx, a.logger)
	rate := a.sampleRate
	var track []float64
	spans := make([]SegmentSpan, 0, len(prod.Segments))
	totalChars := 0

	for i := range prod.Segments {
		if err := ctx.Err(); err != nil {
			return BuildReport{}, services.Wrap(services.ErrTimeout, "assembly", "assemble", "canceled", err)
		}
		segment := &prod.Segments[i]
		version, ok := picks[segment.Index]
		if !ok {
			return BuildReport{}, services.Wrap(services.ErrValidation, "assembly", "assemble",
				fmt.Sprintf("segment %d has no pick", segment.Index), nil)
		}
		candidate, ok := segment.Take(version)
		if !ok {
			return BuildReport{}, services.Wrap(services.ErrValidation, "assembly", "assemble",
				fmt.Sprintf("segment %d has no take v%02d", segment.Index, version), nil)
		}
		clip, err := wavfile.Read(prod.AudioFile(candidate))
		if err != nil {
			return BuildReport{}, services.Wrap(services.ErrMedia, "assembly", "assemble",
				fmt.Sprintf("read take %s", candidate.Label(segment.Index)), err)
		}
		if rate == 0 {
			rate = clip.SampleRate
		}
		if clip.SampleRate != rate {
			return BuildReport{}, services.Wrap(services.ErrValidation, "assembly", "assemble",
				fmt.Sprintf("take %s is %d Hz, track is %d Hz", candidate.Label(segment.Index), clip.SampleRate, rate), nil)
		}

		if i > 0 {
			track = append(track, silence(rate, a.gapMs)...)
		}
		if segment.Opening {
			track = append(track, silence(rate, a.openingPadMs)...)
		}
		start := sampleSeconds(len(track), rate)
		track = append(track, clip.Samples...)
		end := sampleSeconds(len(track), rate)
		if segment.Closing {
			track = append(track, silence(rate, a.closingPadMs)...)
		}
		spans = append(spans, SegmentSpan{Segment: segment.Index, Start: start, End: end})
		totalChars += segment.Chars()
	}

	out := &wavfile.Clip{SampleRate: rate, Samples: track}
	if err := wavfile.Write(outPath, out); err != nil {
		return BuildReport{}, services.Wrap(services.ErrMedia, "assembly", "assemble", "write track", err)
	}

	manifest := Manifest{Duration: out.Duration(), Spans: spans}
	report := BuildReport{
		TrackPath: outPath,
		Manifest:  manifest,
		Gates:     a.evaluateGates(out, manifest, totalChars),
	}

	logger.Debug("track assembled",
		logging.Args(
			logging.Int("segments", len(spans)),
			logging.Float64("duration_seconds", manifest.Duration),
			logging.Int("failed_gates", len(report.FailedGates())),
			logging.String("track", outPath),
		)...)
	return report, nil
}

func (a *WaveAssembler) evaluateGates(track *wavfile.Clip, manifest Manifest, totalChars int) []GateResult {
	gates := make([]GateResult, 0, 5)

	clipped := 0
	for _, sample := range track.Samples {
		if math.Abs(sample) >= clipThreshold {
			clipped++
		}
	}
	gates = append(gates, GateResult{
		Name:      GateClipping,
		Passed:    clipped == 0,
		Automated: true,
		Detail:    fmt.Sprintf("%d samples at full scale", clipped),
	})

	peakDB := dbfs(track.Peak())
	gates = append(gates, GateResult{
		Name:      GatePeakHeadroom,
		Passed:    peakDB <= a.peakCeilingDBFS,
		Automated: true,
		Detail:    fmt.Sprintf("peak %.2f dBFS, ceiling %.2f dBFS", peakDB, a.peakCeilingDBFS),
	})

	alignment := GateResult{Name: GateSegmentAlignment, Passed: true, Automated: true}
	if err := manifest.Validate(); err != nil {
		alignment.Passed = false
		alignment.Detail = err.Error()
	} else {
		alignment.Detail = fmt.Sprintf("%d spans within %.2fs track", len(manifest.Spans), manifest.Duration)
	}
	gates = append(gates, alignment)

	speech := 0.0
	for _, span := range manifest.Spans {
		speech += span.End - span.Start
	}
	slack := a.paceSlackSeconds * float64(len(manifest.Spans))
	minSpeech, maxSpeech := 0.0, math.Inf(1)
	if a.maxCharsPerSecond > 0 {
		minSpeech = float64(totalChars)/a.maxCharsPerSecond - slack
	}
	if a.minCharsPerSecond > 0 {
		maxSpeech = float64(totalChars)/a.minCharsPerSecond + slack
	}
	gates = append(gates, GateResult{
		Name:      GateDuration,
		Passed:    speech >= minSpeech && speech <= maxSpeech,
		Automated: false,
		Detail:    fmt.Sprintf("%.2fs of speech for %d chars, plausible %.2f-%.2fs", speech, totalChars, math.Max(minSpeech, 0), maxSpeech),
	})

	bedPeak := 0.0
	for i, span := range manifest.Spans {
		begin := 0.0
		if i > 0 {
			begin = manifest.Spans[i-1].End
		}
		bedPeak = math.Max(bedPeak, regionPeak(track, begin, span.Start))
	}
	if len(manifest.Spans) > 0 {
		bedPeak = math.Max(bedPeak, regionPeak(track, manifest.Spans[len(manifest.Spans)-1].End, manifest.Duration))
	}
	gates = append(gates, GateResult{
		Name:      GateAmbience,
		Passed:    dbfs(bedPeak) <= ambienceFloorDBFS,
		Automated: false,
		Detail:    fmt.Sprintf("bed peak %.2f dBFS, floor %.2f dBFS", dbfs(bedPeak), ambienceFloorDBFS),
	})

	return gates
}

func regionPeak(track *wavfile.Clip, startSec, endSec float64) float64 {
	if track.SampleRate <= 0 || endSec <= startSec {
		return 0
	}
	start := int(startSec * float64(track.SampleRate))
	end := int(endSec * float64(track.SampleRate))
	if start < 0 {
		start = 0
	}
	if end > len(track.Samples) {
		end = len(track.Samples)
	}
	peak := 0.0
	for i := start; i < end; i++ {
		if abs := math.Abs(track.Samples[i]); abs > peak {
			peak = abs
		}
	}
	return peak
}

func silence(rate int, ms float64) []float64 {
	return make([]float64, int(ms/1000*float64(rate)))
}

func sampleSeconds(samples, rate int) float64 {
	return float64(samples) / float64(rate)
}

func dbfs(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}
