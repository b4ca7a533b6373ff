// Package roi fuses audio cues and visual gatekeeper hits into the merged
// time windows that bound the dense 1fps resample pass.
package roi

import (
	"sort"
	"strconv"
	"strings"
)

// Window is a half-open-ish [StartS, EndS] span of the video worth dense
// sampling.
type Window struct {
	StartS float64
	EndS   float64
}

// Cue is a single point of interest. Timestamp accepts the forms models
// actually emit: a number, "MM:SS", or "HH:MM:SS". Unparseable cues are
// dropped silently.
type Cue struct {
	Timestamp any
}

// MergeWindows pads every cue into [t-buffer, t+buffer] clamped to
// [0, totalDuration], then merges windows that overlap or sit closer than
// minGap. Returns windows sorted by start; never nil.
func MergeWindows(audioCues, visualCues []Cue, totalDuration, bufferSeconds, minGap float64) []Window {
	var timestamps []float64
	for _, c := range audioCues {
		if ts, ok := parseTimestamp(c.Timestamp); ok {
			timestamps = append(timestamps, ts)
		}
	}
	for _, c := range visualCues {
		if ts, ok := parseTimestamp(c.Timestamp); ok {
			timestamps = append(timestamps, ts)
		}
	}
	if len(timestamps) == 0 {
		return []Window{}
	}

	windows := make([]Window, 0, len(timestamps))
	for _, ts := range timestamps {
		start := ts - bufferSeconds
		if start < 0 {
			start = 0
		}
		end := ts + bufferSeconds
		if end > totalDuration {
			end = totalDuration
		}
		windows = append(windows, Window{StartS: start, EndS: end})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].StartS < windows[j].StartS })

	merged := []Window{windows[0]}
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.StartS <= last.EndS+minGap {
			if w.EndS > last.EndS {
				last.EndS = w.EndS
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// TotalSeconds sums the covered duration, for logging coverage ratios.
func TotalSeconds(windows []Window) float64 {
	var total float64
	for _, w := range windows {
		total += w.EndS - w.StartS
	}
	return total
}

func parseTimestamp(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		return parseClock(t)
	default:
		return 0, false
	}
}

// parseClock handles "HH:MM:SS", "MM:SS", and bare seconds.
func parseClock(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 3:
		h, err1 := strconv.ParseFloat(parts[0], 64)
		m, err2 := strconv.ParseFloat(parts[1], 64)
		sec, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, false
		}
		return h*3600 + m*60 + sec, true
	case 2:
		m, err1 := strconv.ParseFloat(parts[0], 64)
		sec, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return m*60 + sec, true
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}
