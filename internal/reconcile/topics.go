package reconcile

import (
	"sort"
	"strings"

	"github.com/yungbote/videomind-backend/internal/types"
)

const topicOverlapRatio = 0.7

// DeduplicateTopics drops topics that restate the previous one, which
// happens when a long transcript is analyzed in splits. A topic covering
// more than 70% of the previous topic's span replaces it only when it
// carries more key points.
func DeduplicateTopics(topics []types.Topic) []types.Topic {
	if len(topics) == 0 {
		return []types.Topic{}
	}

	sorted := make([]types.Topic, len(topics))
	copy(sorted, topics)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartS < sorted[j].StartS })

	var out []types.Topic
	for _, topic := range sorted {
		if len(out) > 0 {
			last := &out[len(out)-1]
			overlapStart := max64(topic.StartS, last.StartS)
			overlapEnd := min64(topic.EndS, last.EndS)
			overlap := overlapEnd - overlapStart
			if overlap < 0 {
				overlap = 0
			}
			lastDur := last.EndS - last.StartS
			if lastDur > 0 && overlap/lastDur > topicOverlapRatio {
				if len(topic.KeyPoints) > len(last.KeyPoints) {
					*last = topic
				}
				continue
			}
		}
		out = append(out, topic)
	}
	return out
}

// FilterAds removes sponsor reads and ad breaks. The filter runs both before
// and after synthesis (the synthesizer occasionally reintroduces a prominent
// sponsor as a topic), so it must be idempotent.
func FilterAds(topics []types.Topic) []types.Topic {
	out := make([]types.Topic, 0, len(topics))
	for _, t := range topics {
		if t.Type == "ad" {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), "sponsor") {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SanitizeTopicSpan clamps a topic's span into something usable: negative
// starts go to zero, and an end before its start gets a ten-minute default
// so frame binding still has a window to work with.
func SanitizeTopicSpan(t *types.Topic) {
	if t.StartS < 0 {
		t.StartS = 0
	}
	if t.EndS < t.StartS {
		t.EndS = t.StartS + 600
	}
}
