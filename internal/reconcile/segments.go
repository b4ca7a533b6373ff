// Package reconcile merges the outputs of independently-processed chunks
// back into one coherent report: transcript segments from overlapping audio
// chunks, topics from transcript splits, and hero frames into topic spans.
package reconcile

import (
	"sort"

	"github.com/yungbote/videomind-backend/internal/types"
)

const (
	segmentOverlapRatio = 0.7
	segmentMergeGap     = 2.0
)

// DeduplicateSegments removes the duplicates that 30s audio-chunk overlap
// produces. Segments overlapping more than 70% of either span collapse to
// the one with more text (longer span on ties); near-adjacent segments
// (gap under 2s either direction) merge into one.
func DeduplicateSegments(segments []types.Segment) []types.Segment {
	if len(segments) == 0 {
		return []types.Segment{}
	}

	sorted := make([]types.Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartS < sorted[j].StartS })

	out := []types.Segment{sorted[0]}
	for _, seg := range sorted[1:] {
		last := &out[len(out)-1]

		overlapStart := max64(seg.StartS, last.StartS)
		overlapEnd := min64(seg.EndS, last.EndS)
		overlap := overlapEnd - overlapStart
		if overlap < 0 {
			overlap = 0
		}
		lastDur := last.EndS - last.StartS
		segDur := seg.EndS - seg.StartS

		highOverlap := (lastDur > 0 && overlap/lastDur > segmentOverlapRatio) ||
			(segDur > 0 && overlap/segDur > segmentOverlapRatio)
		if highOverlap {
			if len(seg.Text) > len(last.Text) || segDur > lastDur {
				*last = seg
			}
			continue
		}

		gap := seg.StartS - last.EndS
		if gap < segmentMergeGap && gap > -segmentMergeGap {
			speaker := last.Speaker
			if speaker == "" {
				speaker = seg.Speaker
			}
			*last = types.Segment{
				Text:    last.Text + " " + seg.Text,
				StartS:  last.StartS,
				EndS:    max64(last.EndS, seg.EndS),
				Speaker: speaker,
			}
			continue
		}

		out = append(out, seg)
	}
	return out
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
