package reconcile

import (
	"math"

	"github.com/yungbote/videomind-backend/internal/types"
)

// Sub-topic frame matching tolerance: a hero frame further than this from
// the sub-topic's timestamp is the wrong frame.
const frameMatchWindow = 2.0

// AttachFrames binds hero frames into every topic whose span contains them,
// then resolves each sub-topic's image against the hero list. A sub-topic
// match also promotes its frame into the topic's frame list, deduplicated by
// blob URL. Topic spans are sanitized first.
func AttachFrames(topics []types.Topic, heroes []types.HeroFrame) []types.Topic {
	out := make([]types.Topic, len(topics))
	copy(out, topics)

	for i := range out {
		SanitizeTopicSpan(&out[i])

		var frames []types.HeroFrame
		for _, h := range heroes {
			if h.TimestampS >= out[i].StartS && h.TimestampS <= out[i].EndS {
				frames = append(frames, h)
			}
		}

		subs := make([]types.SubTopic, len(out[i].SubTopics))
		copy(subs, out[i].SubTopics)
		for j := range subs {
			matched := resolveSubTopicFrame(&subs[j], heroes)
			if matched != nil {
				frames = appendUniqueFrame(frames, *matched)
			}
		}
		out[i].SubTopics = subs
		out[i].Frames = frames
	}
	return out
}

// resolveSubTopicFrame fills in the sub-topic's image URL from the nearest
// hero frame within the match window, or locates the hero backing an
// already-set URL. Returns the matched hero, if any.
func resolveSubTopicFrame(sub *types.SubTopic, heroes []types.HeroFrame) *types.HeroFrame {
	if sub.ImageURL != "" {
		for i := range heroes {
			if heroes[i].BlobURL == sub.ImageURL {
				return &heroes[i]
			}
		}
		return nil
	}

	closestDiff := frameMatchWindow
	var closest *types.HeroFrame
	for i := range heroes {
		diff := math.Abs(heroes[i].TimestampS - sub.FrameTimestampS)
		if diff < closestDiff {
			closestDiff = diff
			closest = &heroes[i]
		}
	}
	if closest == nil {
		return nil
	}
	sub.ImageURL = closest.BlobURL
	return closest
}

func appendUniqueFrame(frames []types.HeroFrame, f types.HeroFrame) []types.HeroFrame {
	for _, existing := range frames {
		if existing.BlobURL == f.BlobURL {
			return frames
		}
	}
	return append(frames, f)
}
