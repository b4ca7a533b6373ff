package services

import "strings"

// Canonical genres. The classifier can return anything; normalizeGenre folds
// it into this closed set so prompt guidance stays deterministic.
const (
	GenrePodcastPanel         = "podcast_panel"
	GenreEducationalLecture   = "educational_lecture"
	GenreInterviewQnA         = "interview_qna"
	GenreVlog                 = "vlog"
	GenreMeetingPresentation  = "meeting_presentation"
	GenreSingleSpeakerGeneral = "single_speaker_general"
	GenreUnknown              = "unknown"
)

var genreMapping = map[string]string{
	"educational":          GenreEducationalLecture,
	"educational_lecture":  GenreEducationalLecture,
	"educational_content":  GenreEducationalLecture,
	"educational_tutorial": GenreEducationalLecture,
	"lecture":              GenreEducationalLecture,
	"tutorial":             GenreEducationalLecture,
	"course":               GenreEducationalLecture,
	"lesson":               GenreEducationalLecture,
	"training":             GenreEducationalLecture,

	"podcast":            GenrePodcastPanel,
	"podcast_panel":      GenrePodcastPanel,
	"podcast_interview":  GenrePodcastPanel,
	"podcast_discussion": GenrePodcastPanel,
	"panel_discussion":   GenrePodcastPanel,
	"roundtable":         GenrePodcastPanel,

	"interview":       GenreInterviewQnA,
	"interview_qna":   GenreInterviewQnA,
	"qna":             GenreInterviewQnA,
	"question_answer": GenreInterviewQnA,
	"conversation":    GenreInterviewQnA,

	"vlog":          GenreVlog,
	"vlog_personal": GenreVlog,
	"day_in_life":   GenreVlog,
	"travel_vlog":   GenreVlog,
	"lifestyle":     GenreVlog,

	"meeting":              GenreMeetingPresentation,
	"meeting_presentation": GenreMeetingPresentation,
	"presentation":         GenreMeetingPresentation,
	"business_meeting":     GenreMeetingPresentation,
	"conference":           GenreMeetingPresentation,

	"single_speaker":         GenreSingleSpeakerGeneral,
	"single_speaker_general": GenreSingleSpeakerGeneral,
	"monologue":              GenreSingleSpeakerGeneral,
	"talk":                   GenreSingleSpeakerGeneral,
	"speech":                 GenreSingleSpeakerGeneral,
}

var genreKeywords = []struct {
	genre string
	words []string
}{
	{GenreEducationalLecture, []string{"educational", "lecture", "tutorial", "course", "lesson"}},
	{GenrePodcastPanel, []string{"podcast", "panel", "discussion", "roundtable"}},
	{GenreInterviewQnA, []string{"interview", "qna", "question", "conversation"}},
	{GenreVlog, []string{"vlog", "day", "life", "travel", "lifestyle"}},
	{GenreMeetingPresentation, []string{"meeting", "presentation", "business", "conference"}},
	{GenreSingleSpeakerGeneral, []string{"single", "monologue", "talk", "speech"}},
}

// normalizeGenre fuzzy-matches a raw classifier label into the canonical
// set: exact alias first, then substring containment either direction, then
// keyword scan, then unknown.
func normalizeGenre(raw string) string {
	g := strings.ToLower(strings.TrimSpace(raw))
	if g == "" {
		return GenreUnknown
	}
	if mapped, ok := genreMapping[g]; ok {
		return mapped
	}
	for key, mapped := range genreMapping {
		if strings.Contains(g, key) || strings.Contains(key, g) {
			return mapped
		}
	}
	for _, kw := range genreKeywords {
		for _, w := range kw.words {
			if strings.Contains(g, w) {
				return kw.genre
			}
		}
	}
	return GenreUnknown
}

type genreSnippets struct {
	analysis  string
	synthesis string
}

var genrePromptSnippets = map[string]genreSnippets{
	GenrePodcastPanel: {
		analysis: "Genre guidance: This is a podcast/panel with multiple speakers. " +
			"Prefer topics organized by discussion segments, speaker turns, questions, and debates. " +
			"Capture noteworthy quotes and disagreements. Avoid assuming slides unless mentioned.",
		synthesis: "Genre guidance: Podcast/panel. Emphasize key arguments by different speakers, " +
			"consensus vs dissent, and notable quotes. Keep it conversational and accurate.",
	},
	GenreEducationalLecture: {
		analysis: "Genre guidance: Educational lecture/tutorial. Prefer chaptering by concepts, " +
			"definitions, examples, steps, and recap. If slides/demos are likely, mark visual cues.",
		synthesis: "Genre guidance: Educational. Emphasize learning objectives, step-by-step breakdowns, " +
			"definitions, examples, and actionable study takeaways.",
	},
	GenreVlog: {
		analysis: "Genre guidance: Vlog. Prefer segments by locations/activities/time-of-day changes. " +
			"Summaries should reflect narrative flow and key moments rather than formal chapters.",
		synthesis: "Genre guidance: Vlog. Emphasize storyline, highlights, places/activities, and memorable moments.",
	},
	GenreSingleSpeakerGeneral: {
		analysis: "Genre guidance: Single-speaker general talk (non-educational). " +
			"Prefer segments by topics, anecdotes, opinions, and conclusions.",
		synthesis: "Genre guidance: Single-speaker general. Emphasize main points, opinions, and memorable quotes.",
	},
	GenreInterviewQnA: {
		analysis: "Genre guidance: Interview/Q&A. Prefer segments by questions and answers. " +
			"Clearly identify the question context and the answer summary.",
		synthesis: "Genre guidance: Interview/Q&A. Emphasize key questions, concise answers, and notable quotes.",
	},
	GenreMeetingPresentation: {
		analysis: "Genre guidance: Meeting/presentation. Prefer segments by agenda items, decisions, action items, " +
			"and key updates. Capture commitments and owners if present.",
		synthesis: "Genre guidance: Meeting/presentation. Emphasize decisions, action items, and summary of updates.",
	},
	GenreUnknown: {
		analysis:  "Genre guidance: Unknown. Use a neutral, general chaptering approach.",
		synthesis: "Genre guidance: Unknown. Use a neutral summary approach.",
	},
}

func genreSnippet(genre, key string) string {
	g := strings.TrimSpace(genre)
	snippets, ok := genrePromptSnippets[g]
	if !ok {
		snippets = genrePromptSnippets[GenreUnknown]
	}
	if key == "synthesis" {
		return snippets.synthesis
	}
	return snippets.analysis
}
