package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/roi"
)

// MediaToolsService is the glue around the ffmpeg binary: probing, audio
// extraction, chunking, and the two frame-sampling passes. Synchronous and
// deterministic; call it from the pipeline worker, not request handlers.
type MediaToolsService interface {
	AssertReady(ctx context.Context) error

	// ProbeDuration returns the media duration in seconds, 0 when it cannot
	// be determined.
	ProbeDuration(ctx context.Context, path string) float64

	ExtractAudio(ctx context.Context, videoPath, outPath string, sampleRate int) (string, error)
	SplitAudio(ctx context.Context, audioPath string, chunkSeconds, overlapSeconds int) ([]AudioChunk, error)

	// ExtractKeyframes samples one frame every interval seconds across the
	// whole video (the coarse pass).
	ExtractKeyframes(ctx context.Context, videoPath, outDir string, intervalSeconds int) ([]SampledFrame, error)

	// ExtractDenseFrames samples at fps inside the given windows only (the
	// dense pass).
	ExtractDenseFrames(ctx context.Context, videoPath, outDir string, windows []roi.Window, fps int) ([]SampledFrame, error)
}

// AudioChunk is one transcription unit on disk, with its absolute position
// in the source audio.
type AudioChunk struct {
	Path   string
	StartS float64
	EndS   float64
}

type SampledFrame struct {
	Path       string
	TimestampS float64
}

const (
	probeTimeout      = 30 * time.Second
	audioTimeout      = 300 * time.Second
	frameTimeout      = 60 * time.Second
	denseFrameTimeout = 120 * time.Second
)

var durationRe = regexp.MustCompile(`Duration: (\d+):(\d+):(\d+\.\d+)`)

type mediaToolsService struct {
	log        *logger.Logger
	ffmpegPath string
}

func NewMediaToolsService(log *logger.Logger) MediaToolsService {
	ffmpegPath := strings.TrimSpace(os.Getenv("FFMPEG_PATH"))
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &mediaToolsService{
		log:        log.With("service", "MediaToolsService"),
		ffmpegPath: ffmpegPath,
	}
}

func (m *mediaToolsService) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(m.ffmpegPath); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", m.ffmpegPath, err)
	}
	return nil
}

// ProbeDuration parses "Duration: HH:MM:SS.ms" from ffmpeg's stderr. ffmpeg
// exits non-zero when given no output file, so the exit code is ignored and
// only the parse matters.
func (m *mediaToolsService) ProbeDuration(ctx context.Context, path string) float64 {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath, "-i", abs)
	out, _ := cmd.CombinedOutput()

	match := durationRe.FindStringSubmatch(string(out))
	if match == nil {
		m.log.Warn("Could not parse media duration", "path", path)
		return 0
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.ParseFloat(match[3], 64)
	return float64(hours)*3600 + float64(minutes)*60 + seconds
}

// ExtractAudio demuxes the audio track to mono 16-bit PCM WAV at the given
// sample rate.
func (m *mediaToolsService) ExtractAudio(ctx context.Context, videoPath, outPath string, sampleRate int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, audioTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-y",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("extract audio: %w; out=%s", err, tail(string(out), 512))
	}
	return outPath, nil
}

// SplitAudio cuts the audio into stream-copied chunks of chunkSeconds, each
// starting overlapSeconds before the previous chunk's end, so no sentence is
// lost at a boundary.
func (m *mediaToolsService) SplitAudio(ctx context.Context, audioPath string, chunkSeconds, overlapSeconds int) ([]AudioChunk, error) {
	duration := m.ProbeDuration(ctx, audioPath)
	if duration <= 0 {
		return nil, fmt.Errorf("cannot determine audio duration for %s", audioPath)
	}

	plan := PlanAudioChunks(duration, chunkSeconds, overlapSeconds)
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))

	chunks := make([]AudioChunk, 0, len(plan))
	for i, p := range plan {
		chunkPath := fmt.Sprintf("%s_chunk_%d.wav", base, i)

		cctx, cancel := context.WithTimeout(ctx, audioTimeout)
		cmd := exec.CommandContext(cctx, m.ffmpegPath,
			"-i", audioPath,
			"-ss", formatSeconds(p.StartS),
			"-t", formatSeconds(p.EndS-p.StartS),
			"-acodec", "copy",
			"-y",
			chunkPath,
		)
		out, err := cmd.CombinedOutput()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("split audio chunk %d: %w; out=%s", i, err, tail(string(out), 512))
		}
		chunks = append(chunks, AudioChunk{Path: chunkPath, StartS: p.StartS, EndS: p.EndS})
	}
	return chunks, nil
}

// PlanAudioChunks computes chunk boundaries without touching disk. The step
// between chunk starts is chunkSeconds-overlapSeconds; the last chunk is
// clipped to the total duration.
func PlanAudioChunks(duration float64, chunkSeconds, overlapSeconds int) []AudioChunk {
	if duration <= 0 || chunkSeconds <= 0 {
		return nil
	}
	step := chunkSeconds - overlapSeconds
	if step <= 0 {
		step = chunkSeconds
	}

	var plan []AudioChunk
	for current := 0.0; current < duration; current += float64(step) {
		end := current + float64(chunkSeconds)
		if end > duration {
			end = duration
		}
		plan = append(plan, AudioChunk{StartS: current, EndS: end})
	}
	return plan
}

// ExtractKeyframes seeks to each multiple of intervalSeconds and grabs one
// frame. Per-seek extraction is slower than one filter pass but a corrupt
// region then costs a single frame, not the whole pass.
func (m *mediaToolsService) ExtractKeyframes(ctx context.Context, videoPath, outDir string, intervalSeconds int) ([]SampledFrame, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	duration := m.ProbeDuration(ctx, videoPath)
	if duration <= 0 {
		return nil, fmt.Errorf("cannot determine video duration for %s", videoPath)
	}
	if intervalSeconds <= 0 {
		intervalSeconds = 30
	}

	var frames []SampledFrame
	frameIndex := 0
	for current := 0.0; current <= duration; current += float64(intervalSeconds) {
		if ctx.Err() != nil {
			return frames, ctx.Err()
		}
		framePath := filepath.Join(outDir, fmt.Sprintf("frame_%04d.jpg", frameIndex))

		fctx, cancel := context.WithTimeout(ctx, frameTimeout)
		cmd := exec.CommandContext(fctx, m.ffmpegPath,
			"-ss", formatSeconds(current),
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "2",
			"-y",
			framePath,
		)
		_, err := cmd.CombinedOutput()
		cancel()
		if err != nil {
			// A failed seek near the end of file is common; skip the frame.
			m.log.Warn("Keyframe extraction failed", "timestamp", current, "error", err)
			continue
		}
		frames = append(frames, SampledFrame{Path: framePath, TimestampS: current})
		frameIndex++
	}
	return frames, nil
}

// ExtractDenseFrames runs one fps-filtered pass per window. Output files are
// named frame_%05d_<window>_<n>.jpg where %05d is the integer timestamp, and
// each frame's timestamp is start + (n-1)/fps.
func (m *mediaToolsService) ExtractDenseFrames(ctx context.Context, videoPath, outDir string, windows []roi.Window, fps int) ([]SampledFrame, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	if fps <= 0 {
		fps = 1
	}

	var all []SampledFrame
	for i, w := range windows {
		dur := w.EndS - w.StartS
		if dur <= 0 {
			continue
		}
		if ctx.Err() != nil {
			return all, ctx.Err()
		}

		pattern := filepath.Join(outDir, fmt.Sprintf("win_%d_%%04d.jpg", i))
		dctx, cancel := context.WithTimeout(ctx, denseFrameTimeout)
		cmd := exec.CommandContext(dctx, m.ffmpegPath,
			"-ss", formatSeconds(w.StartS),
			"-t", formatSeconds(dur),
			"-i", videoPath,
			"-vf", fmt.Sprintf("fps=%d", fps),
			"-q:v", "2",
			"-y",
			pattern,
		)
		out, err := cmd.CombinedOutput()
		cancel()
		if err != nil {
			m.log.Warn("Dense extraction failed for window",
				"start", w.StartS, "end", w.EndS, "error", err, "out", tail(string(out), 256))
			continue
		}

		frames, err := collectWindowFrames(outDir, i, w.StartS, fps)
		if err != nil {
			m.log.Warn("Could not collect dense frames", "window", i, "error", err)
			continue
		}
		all = append(all, frames...)
	}

	sort.Slice(all, func(a, b int) bool { return all[a].TimestampS < all[b].TimestampS })
	return all, nil
}

var windowFrameRe = regexp.MustCompile(`^win_(\d+)_(\d+)\.jpg$`)

// collectWindowFrames maps ffmpeg's sequential win_<i>_%04d.jpg output back
// to absolute timestamps and renames each file to carry that timestamp.
func collectWindowFrames(outDir string, window int, startS float64, fps int) ([]SampledFrame, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}

	var frames []SampledFrame
	for _, e := range entries {
		match := windowFrameRe.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		if w, _ := strconv.Atoi(match[1]); w != window {
			continue
		}
		frameNum, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}

		timestamp := startS + float64(frameNum-1)/float64(fps)
		newName := fmt.Sprintf("frame_%05d_%d_%d.jpg", int(timestamp), window, frameNum)
		oldPath := filepath.Join(outDir, e.Name())
		newPath := filepath.Join(outDir, newName)
		if err := os.Rename(oldPath, newPath); err != nil {
			return nil, err
		}
		frames = append(frames, SampledFrame{Path: newPath, TimestampS: timestamp})
	}
	return frames, nil
}

// FormatTimestamp renders seconds as HH:MM:SS for prompts and report text.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseTimestamp accepts HH:MM:SS, MM:SS, or bare seconds; 0 on failure.
func ParseTimestamp(ts string) float64 {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0
	}
	parts := strings.Split(ts, ":")
	switch len(parts) {
	case 3:
		h, err1 := strconv.ParseFloat(parts[0], 64)
		mm, err2 := strconv.ParseFloat(parts[1], 64)
		ss, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0
		}
		return h*3600 + mm*60 + ss
	case 2:
		mm, err1 := strconv.ParseFloat(parts[0], 64)
		ss, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return 0
		}
		return mm*60 + ss
	default:
		f, err := strconv.ParseFloat(ts, 64)
		if err != nil {
			return 0
		}
		return f
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
