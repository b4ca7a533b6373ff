package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/platform/gemini"
	"github.com/yungbote/videomind-backend/internal/reconcile"
	"github.com/yungbote/videomind-backend/internal/types"
)

// GenreResult is the classifier's verdict, already normalized into the
// canonical genre set.
type GenreResult struct {
	Genre      string  `json:"genre"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// VisualCue marks a moment where the speaker references something on screen.
type VisualCue struct {
	TimestampS float64
	CuePhrase  string
	Confidence string
	VisualType string
}

// GateResult is the gatekeeper's classification of one coarse frame.
type GateResult struct {
	Category           string `json:"category"`
	InformationDensity string `json:"information_density"`
	ContainsText       bool   `json:"contains_text"`
	IsUseful           bool   `json:"is_useful"`
}

// VisualSubTopic is one analyzed cluster: the chosen hero frame plus what it
// shows. BlobURL is filled in after upload.
type VisualSubTopic struct {
	TimestampS    float64  `json:"timestamp_s"`
	HeroFramePath string   `json:"-"`
	BlobURL       string   `json:"blob_url,omitempty"`
	Title         string   `json:"title"`
	VisualSummary string   `json:"visual_summary"`
	OCRKeywords   []string `json:"ocr_keywords"`
	FrameCount    int      `json:"frame_count"`
	ClusterIdx    int      `json:"cluster_idx"`
}

// TranscriptAnalysis is the structured result of the topic-extraction pass.
type TranscriptAnalysis struct {
	Topics       []types.Topic
	Entities     types.Entities
	KeyTakeaways []string
	VisualCues   []VisualCue
}

// Synthesis is the final merged report content.
type Synthesis struct {
	ExecutiveSummary string
	Topics           []types.Topic
	KeyTakeaways     []string
	Entities         types.Entities
}

// VideoAIService wraps every language-model operation in the pipeline.
// Each op degrades gracefully: a failed call returns a usable zero-ish value
// rather than sinking the job, except transcription and analysis which the
// pipeline cannot proceed without.
type VideoAIService interface {
	ClassifyGenre(ctx context.Context, transcriptText string, duration float64) GenreResult
	DetectVisualCues(ctx context.Context, segments []types.Segment) []VisualCue
	EvaluateFrame(ctx context.Context, framePath string) GateResult
	TranscribeChunk(ctx context.Context, chunk AudioChunk) ([]types.Segment, error)
	AnalyzeTranscript(ctx context.Context, transcriptText string, duration float64, genre string) (TranscriptAnalysis, error)
	AnalyzeFrameClusters(ctx context.Context, clusters []ClusterInput) []VisualSubTopic
	MapVisualsToTopics(ctx context.Context, mainTopics []types.Topic, visuals []VisualSubTopic) []types.Topic
	Synthesize(ctx context.Context, analysis TranscriptAnalysis, visuals []VisualSubTopic, duration float64, genre, playlistContext string) Synthesis
	GenerateSlideSummary(ctx context.Context, transcriptText, executiveSummary string, keyTakeaways []string, topics []types.Topic, duration float64, genre string) ([]types.Slide, error)
	SummarizeSeries(ctx context.Context, seriesName string, chapters []ChapterSummary) (string, error)
	AnswerQuestion(ctx context.Context, job *types.VideoJob, transcript []types.Segment, topics []types.Topic, question string) (string, error)
}

// ChapterSummary is one completed video's digest, used when summarizing a
// whole playlist as a curriculum.
type ChapterSummary struct {
	Number           int      `json:"chapter_number"`
	Title            string   `json:"title"`
	ExecutiveSummary string   `json:"executive_summary"`
	KeyTakeaways     []string `json:"key_takeaways"`
	DurationMinutes  float64  `json:"duration_minutes"`
}

// ClusterInput is the slice of a visual cluster the analyzer needs: the
// candidate frames (sharpest first) and the window they came from.
type ClusterInput struct {
	StartS     float64
	EndS       float64
	FrameCount int
	Candidates []CandidateFrame
}

type CandidateFrame struct {
	Path       string
	TimestampS float64
}

type videoAIService struct {
	log *logger.Logger
	lm  gemini.Client
}

func NewVideoAIService(lm gemini.Client, log *logger.Logger) VideoAIService {
	return &videoAIService{
		log: log.With("service", "VideoAIService"),
		lm:  lm,
	}
}

const (
	maxGenreSampleChars     = 8000
	maxAnalysisChars        = 50000
	maxSlideTranscriptChars = 12000
	analysisSplitCount      = 3
	maxSubTopicsPerTopic    = 3
	// Synthesis must keep at least this share of the analyzer's topics or
	// the analyzer's list wins outright.
	topicPreservationRatio = 0.8
)

func (s *videoAIService) ClassifyGenre(ctx context.Context, transcriptText string, duration float64) GenreResult {
	sample := transcriptText
	if len(sample) > maxGenreSampleChars {
		sample = sample[:maxGenreSampleChars]
	}

	fallback := GenreResult{Genre: GenreUnknown}
	text, err := s.lm.GenerateText(ctx, classifyGenrePrompt(sample, duration))
	if err != nil {
		s.log.Warn("Genre classification failed", "error", err)
		return fallback
	}

	var parsed struct {
		Genre      string  `json:"genre"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil {
		s.log.Warn("Genre classification unparseable", "error", err)
		return fallback
	}

	result := GenreResult{
		Genre:      normalizeGenre(parsed.Genre),
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
	}
	s.log.Info("Detected genre", "genre", result.Genre, "raw", parsed.Genre, "confidence", result.Confidence)
	return result
}

func (s *videoAIService) DetectVisualCues(ctx context.Context, segments []types.Segment) []VisualCue {
	if len(segments) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&sb, "[%s] %s\n", FormatTimestamp(seg.StartS), seg.Text)
	}

	text, err := s.lm.GenerateText(ctx, visualCueScoutPrompt(sb.String()))
	if err != nil {
		s.log.Warn("Audio cue scout failed", "error", err)
		return nil
	}

	var parsed struct {
		VisualCues []struct {
			Timestamp          string `json:"timestamp"`
			CuePhrase          string `json:"cue_phrase"`
			Confidence         string `json:"confidence"`
			ExpectedVisualType string `json:"expected_visual_type"`
		} `json:"visual_cues"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil {
		s.log.Warn("Audio cue scout unparseable", "error", err)
		return nil
	}

	cues := make([]VisualCue, 0, len(parsed.VisualCues))
	for _, c := range parsed.VisualCues {
		cues = append(cues, VisualCue{
			TimestampS: ParseTimestamp(c.Timestamp),
			CuePhrase:  c.CuePhrase,
			Confidence: c.Confidence,
			VisualType: c.ExpectedVisualType,
		})
	}
	return cues
}

// EvaluateFrame is the gatekeeper: junk frames (talking heads, transitions)
// come back not-useful so their neighborhoods never reach dense sampling.
// Any failure also reads as not-useful, under the "error" category so logs can
// tell a dropped-by-error frame from a genuinely uninteresting one.
func (s *videoAIService) EvaluateFrame(ctx context.Context, framePath string) GateResult {
	notUseful := GateResult{Category: "error", InformationDensity: "none"}

	data, err := os.ReadFile(framePath)
	if err != nil {
		s.log.Warn("Gatekeeper could not read frame", "path", framePath, "error", err)
		return notUseful
	}

	text, err := s.lm.GenerateVision(ctx, []gemini.Part{
		gemini.TextPart(gatekeeperPrompt),
		gemini.BlobPart("image/jpeg", data),
	})
	if err != nil {
		s.log.Warn("Gatekeeper analysis failed", "path", framePath, "error", err)
		return notUseful
	}

	var result GateResult
	if err := gemini.DecodeLoose(text, &result); err != nil {
		s.log.Warn("Gatekeeper response unparseable", "path", framePath, "error", err)
		return notUseful
	}
	return result
}

func (s *videoAIService) TranscribeChunk(ctx context.Context, chunk AudioChunk) ([]types.Segment, error) {
	data, err := os.ReadFile(chunk.Path)
	if err != nil {
		return nil, fmt.Errorf("read audio chunk: %w", err)
	}

	text, err := s.lm.GenerateParts(ctx, []gemini.Part{
		gemini.TextPart(transcribePrompt),
		gemini.BlobPart("audio/wav", data),
	})
	if err != nil {
		s.log.Warn("Structured transcription failed, falling back", "chunk_start", chunk.StartS, "error", err)
		return s.simpleTranscribe(ctx, data, chunk)
	}

	var parsed struct {
		Segments []struct {
			Text       string  `json:"text"`
			StartTime  float64 `json:"start_time"`
			EndTime    float64 `json:"end_time"`
			Speaker    string  `json:"speaker"`
			Confidence float64 `json:"confidence"`
		} `json:"segments"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil || len(parsed.Segments) == 0 {
		s.log.Warn("Transcription response unparseable, falling back", "chunk_start", chunk.StartS, "error", err)
		return s.simpleTranscribe(ctx, data, chunk)
	}

	segments := make([]types.Segment, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		confidence := seg.Confidence
		if confidence == 0 {
			confidence = 0.9
		}
		segments = append(segments, types.Segment{
			Text:       seg.Text,
			StartS:     chunk.StartS + seg.StartTime,
			EndS:       chunk.StartS + seg.EndTime,
			Speaker:    seg.Speaker,
			Confidence: confidence,
		})
	}
	return segments, nil
}

// simpleTranscribe trades timestamps for resilience: one plain-text request,
// one coarse segment spanning the whole chunk.
func (s *videoAIService) simpleTranscribe(ctx context.Context, audio []byte, chunk AudioChunk) ([]types.Segment, error) {
	text, err := s.lm.GenerateParts(ctx, []gemini.Part{
		gemini.TextPart(simpleTranscribePrompt),
		gemini.BlobPart("audio/wav", audio),
	})
	if err != nil {
		return nil, fmt.Errorf("simple transcription: %w", err)
	}

	end := chunk.EndS
	if end <= chunk.StartS {
		end = chunk.StartS + 300
	}
	return []types.Segment{{
		Text:       text,
		StartS:     chunk.StartS,
		EndS:       end,
		Speaker:    "Speaker A",
		Confidence: 0.8,
	}}, nil
}

func (s *videoAIService) AnalyzeTranscript(ctx context.Context, transcriptText string, duration float64, genre string) (TranscriptAnalysis, error) {
	if len(transcriptText) <= maxAnalysisChars {
		return s.analyzeChunk(ctx, transcriptText, duration, 0, 1, 0, duration, genre)
	}

	s.log.Info("Large transcript, analyzing in splits", "chars", len(transcriptText), "splits", analysisSplitCount)
	words := strings.Fields(transcriptText)
	splitSize := len(words) / analysisSplitCount
	if splitSize == 0 {
		splitSize = len(words)
	}

	var splits []string
	for i := 0; i < len(words); i += splitSize {
		end := i + splitSize
		if end > len(words) {
			end = len(words)
		}
		splits = append(splits, strings.Join(words[i:end], " "))
	}

	merged := TranscriptAnalysis{
		Entities: types.Entities{"people": {}, "companies": {}, "concepts": {}, "tools": {}},
	}
	var analyzed int
	for idx, split := range splits {
		chunkStart := float64(idx) / float64(len(splits)) * duration
		chunkEnd := float64(idx+1) / float64(len(splits)) * duration

		result, err := s.analyzeChunk(ctx, split, duration, idx, len(splits), chunkStart, chunkEnd, genre)
		if err != nil {
			s.log.Warn("Transcript split analysis failed", "split", idx+1, "error", err)
			continue
		}
		analyzed++
		merged.Topics = append(merged.Topics, result.Topics...)
		merged.KeyTakeaways = append(merged.KeyTakeaways, result.KeyTakeaways...)
		merged.VisualCues = append(merged.VisualCues, result.VisualCues...)
		for key, names := range result.Entities {
			merged.Entities[key] = append(merged.Entities[key], names...)
		}
	}
	if analyzed == 0 {
		return TranscriptAnalysis{}, fmt.Errorf("all %d transcript splits failed analysis", len(splits))
	}

	for key := range merged.Entities {
		merged.Entities[key] = dedupeStrings(merged.Entities[key])
	}
	merged.KeyTakeaways = dedupeStrings(merged.KeyTakeaways)
	merged.Topics = reconcile.DeduplicateTopics(merged.Topics)
	return merged, nil
}

func (s *videoAIService) analyzeChunk(ctx context.Context, transcriptText string, duration float64, chunkIdx, totalChunks int, chunkStart, chunkEnd float64, genre string) (TranscriptAnalysis, error) {
	prompt := analyzeChunkPrompt(transcriptText, duration, chunkIdx, totalChunks, chunkStart, chunkEnd, genre)
	text, err := s.lm.GenerateText(ctx, prompt)
	if err != nil {
		return TranscriptAnalysis{}, fmt.Errorf("analyze transcript: %w", err)
	}

	var parsed struct {
		Topics []wireTopic `json:"topics"`
		Cues   []struct {
			Timestamp string `json:"timestamp"`
			CueText   string `json:"cue_text"`
			Context   string `json:"context"`
		} `json:"visual_cues"`
		Entities     types.Entities `json:"entities"`
		KeyTakeaways []string       `json:"key_takeaways"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil {
		return TranscriptAnalysis{}, fmt.Errorf("analyze transcript decode: %w", err)
	}

	analysis := TranscriptAnalysis{
		Topics:       make([]types.Topic, 0, len(parsed.Topics)),
		Entities:     parsed.Entities,
		KeyTakeaways: parsed.KeyTakeaways,
	}
	if analysis.Entities == nil {
		analysis.Entities = types.Entities{}
	}
	for _, wt := range parsed.Topics {
		analysis.Topics = append(analysis.Topics, wt.toTopic())
	}
	for _, c := range parsed.Cues {
		analysis.VisualCues = append(analysis.VisualCues, VisualCue{
			TimestampS: ParseTimestamp(c.Timestamp),
			CuePhrase:  c.CueText,
		})
	}
	return analysis, nil
}

// wireTopic is the model-facing topic shape: timestamps as HH:MM:SS strings.
type wireTopic struct {
	Title          string   `json:"title"`
	TimestampRange []string `json:"timestamp_range"`
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	Quotes         []string `json:"quotes"`
	Type           string   `json:"type"`
}

func (w wireTopic) toTopic() types.Topic {
	t := types.Topic{
		Title:     w.Title,
		Summary:   w.Summary,
		KeyPoints: w.KeyPoints,
		Quotes:    w.Quotes,
		Type:      w.Type,
	}
	if len(w.TimestampRange) >= 2 {
		t.StartS = ParseTimestamp(w.TimestampRange[0])
		t.EndS = ParseTimestamp(w.TimestampRange[1])
	}
	return t
}

func topicToWire(t types.Topic) wireTopic {
	return wireTopic{
		Title:          t.Title,
		TimestampRange: []string{FormatTimestamp(t.StartS), FormatTimestamp(t.EndS)},
		Summary:        t.Summary,
		KeyPoints:      t.KeyPoints,
		Quotes:         t.Quotes,
		Type:           t.Type,
	}
}

// AnalyzeFrameClusters picks a hero frame per cluster and describes what it
// shows. A cluster that fails analysis is dropped; the report just loses one
// visual.
func (s *videoAIService) AnalyzeFrameClusters(ctx context.Context, clusters []ClusterInput) []VisualSubTopic {
	var results []VisualSubTopic

	for i, cluster := range clusters {
		if ctx.Err() != nil {
			return results
		}

		parts := []gemini.Part{gemini.TextPart(clusterAnalysisPrompt(len(cluster.Candidates), cluster.StartS, cluster.EndS))}
		var valid []CandidateFrame
		for _, cand := range cluster.Candidates {
			data, err := os.ReadFile(cand.Path)
			if err != nil {
				s.log.Warn("Skipping unreadable candidate", "path", cand.Path, "error", err)
				continue
			}
			parts = append(parts, gemini.BlobPart("image/jpeg", data))
			valid = append(valid, cand)
		}
		if len(valid) == 0 {
			continue
		}

		text, err := s.lm.GenerateVision(ctx, parts)
		if err != nil {
			s.log.Warn("Cluster analysis failed", "cluster", i, "error", err)
			continue
		}

		var parsed struct {
			HeroFrameIndex int      `json:"hero_frame_index"`
			SubTopicTitle  string   `json:"sub_topic_title"`
			VisualSummary  string   `json:"visual_summary"`
			OCRKeywords    []string `json:"ocr_keywords"`
		}
		if err := gemini.DecodeLoose(text, &parsed); err != nil {
			s.log.Warn("Cluster response unparseable", "cluster", i, "error", err)
			continue
		}

		idx := parsed.HeroFrameIndex
		if idx < 0 || idx >= len(valid) {
			idx = 0
		}
		title := parsed.SubTopicTitle
		if title == "" {
			title = "Visual Topic"
		}
		hero := valid[idx]
		results = append(results, VisualSubTopic{
			TimestampS:    hero.TimestampS,
			HeroFramePath: hero.Path,
			Title:         title,
			VisualSummary: parsed.VisualSummary,
			OCRKeywords:   parsed.OCRKeywords,
			FrameCount:    cluster.FrameCount,
			ClusterIdx:    i,
		})
	}
	return results
}

func (s *videoAIService) MapVisualsToTopics(ctx context.Context, mainTopics []types.Topic, visuals []VisualSubTopic) []types.Topic {
	if len(mainTopics) == 0 || len(visuals) == 0 {
		return mainTopics
	}

	type simpleTopic struct {
		Title          string   `json:"title"`
		TimestampRange []string `json:"timestamp_range"`
	}
	type simpleVisual struct {
		Title         string `json:"title"`
		VisualSummary string `json:"visual_summary"`
		Timestamp     string `json:"timestamp"`
		OriginalIndex int    `json:"original_index"`
	}

	simpleTopics := make([]simpleTopic, 0, len(mainTopics))
	for _, t := range mainTopics {
		simpleTopics = append(simpleTopics, simpleTopic{
			Title:          t.Title,
			TimestampRange: []string{FormatTimestamp(t.StartS), FormatTimestamp(t.EndS)},
		})
	}
	simpleVisuals := make([]simpleVisual, 0, len(visuals))
	for i, v := range visuals {
		simpleVisuals = append(simpleVisuals, simpleVisual{
			Title:         v.Title,
			VisualSummary: v.VisualSummary,
			Timestamp:     FormatTimestamp(v.TimestampS),
			OriginalIndex: i,
		})
	}

	text, err := s.lm.GenerateText(ctx, mapVisualsPrompt(simpleTopics, simpleVisuals))
	if err != nil {
		s.log.Warn("Visual mapping failed, using timestamp fallback", "error", err)
		return fallbackMapVisuals(mainTopics, visuals)
	}

	var parsed struct {
		Topics []struct {
			Title     string `json:"title"`
			SubTopics []struct {
				Title         string `json:"title"`
				VisualSummary string `json:"visual_summary"`
				Timestamp     string `json:"timestamp"`
				OriginalIndex *int   `json:"original_index"`
			} `json:"sub_topics"`
		} `json:"topics"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil || len(parsed.Topics) == 0 {
		s.log.Warn("Visual mapping unparseable, using timestamp fallback", "error", err)
		return fallbackMapVisuals(mainTopics, visuals)
	}

	byTitle := make(map[string][]types.SubTopic, len(parsed.Topics))
	for _, pt := range parsed.Topics {
		var subs []types.SubTopic
		for _, sub := range pt.SubTopics {
			if sub.OriginalIndex == nil || *sub.OriginalIndex < 0 || *sub.OriginalIndex >= len(visuals) {
				continue
			}
			visual := visuals[*sub.OriginalIndex]
			title := sub.Title
			if title == "" {
				title = visual.Title
			}
			summary := sub.VisualSummary
			if summary == "" {
				summary = visual.VisualSummary
			}
			timestamp := sub.Timestamp
			if timestamp == "" {
				timestamp = FormatTimestamp(visual.TimestampS)
			}
			subs = append(subs, types.SubTopic{
				Title:           title,
				VisualSummary:   summary,
				Timestamp:       timestamp,
				FrameTimestampS: visual.TimestampS,
			})
		}
		byTitle[pt.Title] = subs
	}

	out := make([]types.Topic, len(mainTopics))
	copy(out, mainTopics)
	for i := range out {
		out[i].SubTopics = byTitle[out[i].Title]
	}
	return out
}

// fallbackMapVisuals nests visuals purely by timestamp containment, at most
// three per topic.
func fallbackMapVisuals(mainTopics []types.Topic, visuals []VisualSubTopic) []types.Topic {
	out := make([]types.Topic, len(mainTopics))
	copy(out, mainTopics)

	for i := range out {
		var subs []types.SubTopic
		for _, v := range visuals {
			if v.TimestampS >= out[i].StartS && v.TimestampS <= out[i].EndS {
				subs = append(subs, types.SubTopic{
					Title:           v.Title,
					VisualSummary:   v.VisualSummary,
					Timestamp:       FormatTimestamp(v.TimestampS),
					FrameTimestampS: v.TimestampS,
				})
			}
			if len(subs) == maxSubTopicsPerTopic {
				break
			}
		}
		out[i].SubTopics = subs
	}
	return out
}

func (s *videoAIService) Synthesize(ctx context.Context, analysis TranscriptAnalysis, visuals []VisualSubTopic, duration float64, genre, playlistContext string) Synthesis {
	fallback := Synthesis{
		ExecutiveSummary: "Video processing completed but synthesis had errors.",
		Topics:           analysis.Topics,
		KeyTakeaways:     analysis.KeyTakeaways,
		Entities:         analysis.Entities,
	}

	prompt := synthesisPrompt(
		previewJSON(topicsToWire(analysis.Topics), 10, 3000),
		previewJSON(visuals, 15, 3000),
		len(analysis.Topics), len(visuals),
		duration, genre, playlistContext,
	)
	text, err := s.lm.GenerateText(ctx, prompt)
	if err != nil {
		s.log.Warn("Synthesis failed, using analysis output", "error", err)
		return fallback
	}

	var parsed struct {
		ExecutiveSummary string         `json:"executive_summary"`
		Topics           []wireTopic    `json:"topics"`
		KeyTakeaways     []string       `json:"key_takeaways"`
		Entities         types.Entities `json:"entities"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil {
		s.log.Warn("Synthesis response unparseable, using analysis output", "error", err)
		return fallback
	}

	topics := make([]types.Topic, 0, len(parsed.Topics))
	for _, wt := range parsed.Topics {
		topics = append(topics, wt.toTopic())
	}
	// The synthesizer habitually drops topics it finds boring. If too many
	// went missing, the analyzer's list is the truth.
	if float64(len(topics)) < float64(len(analysis.Topics))*topicPreservationRatio {
		s.log.Warn("Synthesis dropped topics, keeping analysis topics",
			"synthesized", len(topics), "original", len(analysis.Topics))
		topics = analysis.Topics
	}
	if len(topics) == 0 {
		topics = analysis.Topics
	}

	result := Synthesis{
		ExecutiveSummary: parsed.ExecutiveSummary,
		Topics:           topics,
		KeyTakeaways:     parsed.KeyTakeaways,
		Entities:         parsed.Entities,
	}
	if result.ExecutiveSummary == "" {
		result.ExecutiveSummary = "Video processing completed."
	}
	if len(result.KeyTakeaways) == 0 {
		result.KeyTakeaways = analysis.KeyTakeaways
	}
	if len(result.Entities) == 0 {
		result.Entities = analysis.Entities
	}
	return result
}

func (s *videoAIService) GenerateSlideSummary(ctx context.Context, transcriptText, executiveSummary string, keyTakeaways []string, topics []types.Topic, duration float64, genre string) ([]types.Slide, error) {
	if len(transcriptText) > maxSlideTranscriptChars {
		transcriptText = transcriptText[:maxSlideTranscriptChars]
	}
	text, err := s.lm.GenerateText(ctx, slideSummaryPrompt(transcriptText, executiveSummary, keyTakeaways, topics, duration, genre))
	if err != nil {
		return nil, fmt.Errorf("slide summary: %w", err)
	}

	var parsed struct {
		Slides []types.Slide `json:"slides"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil {
		return nil, fmt.Errorf("slide summary decode: %w", err)
	}
	if len(parsed.Slides) > 5 {
		parsed.Slides = parsed.Slides[:5]
	}
	return parsed.Slides, nil
}

func (s *videoAIService) SummarizeSeries(ctx context.Context, seriesName string, chapters []ChapterSummary) (string, error) {
	if len(chapters) == 0 {
		return "", fmt.Errorf("no completed chapters to summarize")
	}
	text, err := s.lm.GenerateText(ctx, seriesSummaryPrompt(seriesName, chapters))
	if err != nil {
		return "", fmt.Errorf("series summary: %w", err)
	}

	var parsed struct {
		SeriesSummary string `json:"series_summary"`
	}
	if err := gemini.DecodeLoose(text, &parsed); err != nil || parsed.SeriesSummary == "" {
		// Plain prose is acceptable when the model skips the JSON shape.
		return strings.TrimSpace(text), nil
	}
	return parsed.SeriesSummary, nil
}

func (s *videoAIService) AnswerQuestion(ctx context.Context, job *types.VideoJob, transcript []types.Segment, topics []types.Topic, question string) (string, error) {
	var transcriptSB strings.Builder
	for _, seg := range transcript {
		prefix := ""
		if seg.Speaker != "" {
			prefix = seg.Speaker + ": "
		}
		fmt.Fprintf(&transcriptSB, "[%s] %s%s\n", FormatTimestamp(seg.StartS), prefix, seg.Text)
	}

	var topicsSB strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&topicsSB, "**%s** (%s - %s)\n", t.Title, FormatTimestamp(t.StartS), FormatTimestamp(t.EndS))
		if t.Summary != "" {
			fmt.Fprintf(&topicsSB, "  Summary: %s\n", t.Summary)
		}
		for _, kp := range t.KeyPoints {
			fmt.Fprintf(&topicsSB, "    - %s\n", kp)
		}
		topicsSB.WriteString("\n")
	}

	var takeaways []string
	if len(job.KeyTakeaways) > 0 {
		var parsed []string
		if err := gemini.DecodeLoose(string(job.KeyTakeaways), &parsed); err == nil {
			takeaways = parsed
		}
	}
	takeawayText := "Not available"
	if len(takeaways) > 0 {
		takeawayText = "- " + strings.Join(takeaways, "\n- ")
	}

	return s.lm.GenerateText(ctx, chatPrompt(job, transcriptSB.String(), topicsSB.String(), takeawayText, question))
}

func topicsToWire(topics []types.Topic) []wireTopic {
	out := make([]wireTopic, 0, len(topics))
	for _, t := range topics {
		out = append(out, topicToWire(t))
	}
	return out
}

// previewJSON marshals at most maxItems of v (a slice) and truncates the
// JSON to maxChars, enough context for a summary prompt without blowing the
// token budget.
func previewJSON[T any](items []T, maxItems, maxChars int) string {
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	raw := string(b)
	if len(raw) > maxChars {
		raw = raw[:maxChars]
	}
	return raw
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.TrimSpace(s)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
