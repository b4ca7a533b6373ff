package imaging

import (
	"sort"

	"github.com/yungbote/videomind-backend/internal/logger"
)

// Frame is a sampled image on disk with its position in the video.
type Frame struct {
	Path       string
	TimestampS float64
	Hash       uint64
	Sharpness  float64
}

// Cluster is a run of visually-similar consecutive frames. Candidates holds
// the sharpest members, best first, capped at maxCandidates.
type Cluster struct {
	StartS     float64
	EndS       float64
	FrameCount int
	Candidates []Frame
}

const maxCandidates = 5

// Sharpness sentinel for single-frame clusters: there is nothing to rank
// against, so skip the edge pass and treat the lone frame as good enough.
const singleFrameSharpness = 100.0

// ClusterFrames groups consecutive frames whose hash distance to the
// previous frame is within threshold. A single scene cut ends the run even
// if later frames would match earlier ones again; the downstream vision pass
// tolerates the occasional duplicate cluster.
//
// Frames that cannot be decoded are skipped, not fatal: one corrupt jpeg
// should not sink the whole visual pass.
func ClusterFrames(frames []Frame, threshold int, log *logger.Logger) []Cluster {
	if len(frames) == 0 {
		return []Cluster{}
	}

	hashed := make([]Frame, 0, len(frames))
	for _, f := range frames {
		h, err := DHashFile(f.Path)
		if err != nil {
			if log != nil {
				log.Warn("Skipping unreadable frame", "path", f.Path, "error", err)
			}
			continue
		}
		f.Hash = h
		hashed = append(hashed, f)
	}
	if len(hashed) == 0 {
		return []Cluster{}
	}

	var groups [][]Frame
	current := []Frame{hashed[0]}
	for i := 1; i < len(hashed); i++ {
		if HammingDistance(hashed[i].Hash, hashed[i-1].Hash) <= threshold {
			current = append(current, hashed[i])
			continue
		}
		groups = append(groups, current)
		current = []Frame{hashed[i]}
	}
	groups = append(groups, current)

	clusters := make([]Cluster, 0, len(groups))
	for _, group := range groups {
		if len(group) > 1 {
			for i := range group {
				group[i].Sharpness = SharpnessFile(group[i].Path)
			}
		} else {
			group[0].Sharpness = singleFrameSharpness
		}

		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Sharpness > group[j].Sharpness
		})

		start, end := group[0].TimestampS, group[0].TimestampS
		for _, f := range group {
			if f.TimestampS < start {
				start = f.TimestampS
			}
			if f.TimestampS > end {
				end = f.TimestampS
			}
		}

		n := len(group)
		if n > maxCandidates {
			n = maxCandidates
		}
		clusters = append(clusters, Cluster{
			StartS:     start,
			EndS:       end,
			FrameCount: len(group),
			Candidates: group[:n],
		})
	}
	return clusters
}
