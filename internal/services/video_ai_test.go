package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/platform/gemini"
	"github.com/yungbote/videomind-backend/internal/types"
)

// stubLM returns canned responses keyed by a substring of the prompt, or a
// single fixed response for every call.
type stubLM struct {
	response  string
	err       error
	byPrompt  map[string]string
	lastParts []gemini.Part
	calls     int
}

func (s *stubLM) GenerateText(_ context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	for key, resp := range s.byPrompt {
		if strings.Contains(prompt, key) {
			return resp, nil
		}
	}
	return s.response, nil
}

func (s *stubLM) GenerateParts(_ context.Context, parts []gemini.Part) (string, error) {
	s.calls++
	s.lastParts = parts
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubLM) GenerateVision(ctx context.Context, parts []gemini.Part) (string, error) {
	return s.GenerateParts(ctx, parts)
}

func testAI(t *testing.T, lm gemini.Client) VideoAIService {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewVideoAIService(lm, log)
}

func TestClassifyGenreNormalizesLabel(t *testing.T) {
	lm := &stubLM{response: `{"genre": "Podcast Interview", "confidence": 0.91, "reason": "two hosts"}`}
	got := testAI(t, lm).ClassifyGenre(context.Background(), "some transcript", 600)
	if got.Genre != GenrePodcastPanel {
		t.Fatalf("genre = %q, want %q", got.Genre, GenrePodcastPanel)
	}
	if got.Confidence != 0.91 {
		t.Fatalf("confidence = %v", got.Confidence)
	}
}

func TestClassifyGenreFallsBackToUnknown(t *testing.T) {
	lm := &stubLM{err: errors.New("boom")}
	got := testAI(t, lm).ClassifyGenre(context.Background(), "text", 60)
	if got.Genre != GenreUnknown {
		t.Fatalf("genre = %q, want unknown", got.Genre)
	}
}

func TestNormalizeGenre(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"educational_lecture", GenreEducationalLecture},
		{"Tutorial", GenreEducationalLecture},
		{"a casual podcast discussion", GenrePodcastPanel},
		{"day_in_life", GenreVlog},
		{"weekly business conference call", GenreMeetingPresentation},
		{"", GenreUnknown},
		{"abstract expressionism", GenreUnknown},
	}
	for _, tc := range cases {
		if got := normalizeGenre(tc.in); got != tc.want {
			t.Fatalf("normalizeGenre(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTranscribeChunkOffsetsSegments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk.wav")
	if err := os.WriteFile(path, []byte("RIFF-fake"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lm := &stubLM{response: `{"segments": [
		{"text": "hello", "start_time": 1.0, "end_time": 4.5, "speaker": "Speaker A", "confidence": 0.95},
		{"text": "world", "start_time": 5.0, "end_time": 9.0, "speaker": "Speaker B"}
	]}`}
	segments, err := testAI(t, lm).TranscribeChunk(context.Background(), AudioChunk{Path: path, StartS: 270, EndS: 570})
	if err != nil {
		t.Fatalf("TranscribeChunk: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("segments = %d", len(segments))
	}
	if segments[0].StartS != 271 || segments[0].EndS != 274.5 {
		t.Fatalf("segment 0 span = [%v, %v]", segments[0].StartS, segments[0].EndS)
	}
	// Missing confidence defaults to 0.9.
	if segments[1].Confidence != 0.9 {
		t.Fatalf("confidence = %v", segments[1].Confidence)
	}
}

func TestTranscribeChunkFallsBackToPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk.wav")
	if err := os.WriteFile(path, []byte("RIFF-fake"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Unparseable structured output forces the simple path; the second call
	// returns plain prose.
	lm := &stubLM{response: "just some spoken words with no json at all"}
	segments, err := testAI(t, lm).TranscribeChunk(context.Background(), AudioChunk{Path: path, StartS: 540, EndS: 700})
	if err != nil {
		t.Fatalf("TranscribeChunk: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("segments = %d", len(segments))
	}
	seg := segments[0]
	if seg.StartS != 540 || seg.EndS != 700 {
		t.Fatalf("span = [%v, %v]", seg.StartS, seg.EndS)
	}
	if seg.Speaker != "Speaker A" || seg.Confidence != 0.8 {
		t.Fatalf("segment = %+v", seg)
	}
}

func TestAnalyzeTranscriptSingleChunk(t *testing.T) {
	lm := &stubLM{response: `{
		"topics": [{"title": "Intro", "timestamp_range": ["00:00:00", "00:05:00"], "summary": "s", "key_points": ["a"], "type": "content"}],
		"visual_cues": [{"timestamp": "00:02:10", "cue_text": "see this slide"}],
		"entities": {"people": ["Ada"]},
		"key_takeaways": ["learn things"]
	}`}
	analysis, err := testAI(t, lm).AnalyzeTranscript(context.Background(), "short transcript", 300, GenreEducationalLecture)
	if err != nil {
		t.Fatalf("AnalyzeTranscript: %v", err)
	}
	if len(analysis.Topics) != 1 || analysis.Topics[0].EndS != 300 {
		t.Fatalf("topics = %+v", analysis.Topics)
	}
	if len(analysis.VisualCues) != 1 || analysis.VisualCues[0].TimestampS != 130 {
		t.Fatalf("cues = %+v", analysis.VisualCues)
	}
	if lm.calls != 1 {
		t.Fatalf("calls = %d, want 1", lm.calls)
	}
}

func TestAnalyzeTranscriptSplitsLargeInput(t *testing.T) {
	lm := &stubLM{response: `{
		"topics": [{"title": "Repeated Topic", "timestamp_range": ["00:00:00", "00:10:00"], "summary": "s", "key_points": ["a"], "type": "content"}],
		"entities": {"people": ["Ada", "Ada"]},
		"key_takeaways": ["same takeaway"]
	}`}
	big := strings.Repeat("word ", 12000) // ~60000 chars
	analysis, err := testAI(t, lm).AnalyzeTranscript(context.Background(), big, 1800, GenreUnknown)
	if err != nil {
		t.Fatalf("AnalyzeTranscript: %v", err)
	}
	if lm.calls < 3 {
		t.Fatalf("calls = %d, want >= 3", lm.calls)
	}
	// Identical topics from each split collapse to one.
	if len(analysis.Topics) != 1 {
		t.Fatalf("topics = %d: %+v", len(analysis.Topics), analysis.Topics)
	}
	if len(analysis.KeyTakeaways) != 1 {
		t.Fatalf("takeaways = %v", analysis.KeyTakeaways)
	}
	if got := analysis.Entities["people"]; len(got) != 1 || got[0] != "Ada" {
		t.Fatalf("people = %v", got)
	}
}

func TestAnalyzeFrameClustersClampsHeroIndex(t *testing.T) {
	dir := t.TempDir()
	var cands []CandidateFrame
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%d.jpg", i))
		writeTestJPEG(t, path)
		cands = append(cands, CandidateFrame{Path: path, TimestampS: float64(100 + i)})
	}

	lm := &stubLM{response: `{"hero_frame_index": 99, "sub_topic_title": "Chart", "visual_summary": "a chart", "ocr_keywords": ["revenue"]}`}
	got := testAI(t, lm).AnalyzeFrameClusters(context.Background(), []ClusterInput{
		{StartS: 100, EndS: 102, FrameCount: 12, Candidates: cands},
	})
	if len(got) != 1 {
		t.Fatalf("results = %d", len(got))
	}
	// Out-of-range index falls back to the sharpest candidate.
	if got[0].HeroFramePath != cands[0].Path || got[0].TimestampS != 100 {
		t.Fatalf("hero = %+v", got[0])
	}
	if got[0].FrameCount != 12 || got[0].Title != "Chart" {
		t.Fatalf("result = %+v", got[0])
	}
}

func TestAnalyzeFrameClustersSkipsUnreadable(t *testing.T) {
	lm := &stubLM{response: `{"hero_frame_index": 0}`}
	got := testAI(t, lm).AnalyzeFrameClusters(context.Background(), []ClusterInput{
		{StartS: 0, EndS: 5, FrameCount: 3, Candidates: []CandidateFrame{{Path: "/nonexistent/frame.jpg"}}},
	})
	if len(got) != 0 {
		t.Fatalf("results = %+v", got)
	}
	if lm.calls != 0 {
		t.Fatalf("calls = %d, want 0", lm.calls)
	}
}

func TestMapVisualsFallbackByContainment(t *testing.T) {
	topics := []types.Topic{
		{Title: "One", StartS: 0, EndS: 100},
		{Title: "Two", StartS: 100, EndS: 200},
	}
	visuals := []VisualSubTopic{
		{Title: "V1", TimestampS: 50},
		{Title: "V2", TimestampS: 150},
		{Title: "V3", TimestampS: 999},
	}
	lm := &stubLM{err: errors.New("unavailable")}
	got := testAI(t, lm).MapVisualsToTopics(context.Background(), topics, visuals)
	if len(got[0].SubTopics) != 1 || got[0].SubTopics[0].Title != "V1" {
		t.Fatalf("topic one subs = %+v", got[0].SubTopics)
	}
	if len(got[1].SubTopics) != 1 || got[1].SubTopics[0].FrameTimestampS != 150 {
		t.Fatalf("topic two subs = %+v", got[1].SubTopics)
	}
}

func TestMapVisualsUsesOriginalIndex(t *testing.T) {
	topics := []types.Topic{{Title: "Main", StartS: 0, EndS: 300}}
	visuals := []VisualSubTopic{
		{Title: "A", TimestampS: 10, VisualSummary: "sum a"},
		{Title: "B", TimestampS: 20, VisualSummary: "sum b"},
	}
	lm := &stubLM{response: `{"topics": [{"title": "Main", "sub_topics": [
		{"title": "", "visual_summary": "", "timestamp": "", "original_index": 1},
		{"title": "bogus", "original_index": 42}
	]}]}`}
	got := testAI(t, lm).MapVisualsToTopics(context.Background(), topics, visuals)
	if len(got[0].SubTopics) != 1 {
		t.Fatalf("subs = %+v", got[0].SubTopics)
	}
	sub := got[0].SubTopics[0]
	// Blank fields backfill from the referenced visual.
	if sub.Title != "B" || sub.VisualSummary != "sum b" || sub.FrameTimestampS != 20 {
		t.Fatalf("sub = %+v", sub)
	}
}

func TestSynthesizePreservesTopicsWhenModelDrops(t *testing.T) {
	original := make([]types.Topic, 10)
	for i := range original {
		original[i] = types.Topic{Title: fmt.Sprintf("T%d", i), StartS: float64(i * 60), EndS: float64((i + 1) * 60)}
	}
	analysis := TranscriptAnalysis{Topics: original, KeyTakeaways: []string{"k"}}

	// Model returns only 7 of 10 topics, below the 80% floor.
	var wire []string
	for i := 0; i < 7; i++ {
		wire = append(wire, fmt.Sprintf(`{"title": "T%d", "timestamp_range": ["00:00:00", "00:01:00"]}`, i))
	}
	lm := &stubLM{response: fmt.Sprintf(`{"executive_summary": "sum", "topics": [%s], "key_takeaways": ["x"], "entities": {"tools": ["go"]}}`, strings.Join(wire, ","))}

	got := testAI(t, lm).Synthesize(context.Background(), analysis, nil, 600, GenreUnknown, "")
	if len(got.Topics) != 10 {
		t.Fatalf("topics = %d, want original 10", len(got.Topics))
	}
	if got.ExecutiveSummary != "sum" {
		t.Fatalf("summary = %q", got.ExecutiveSummary)
	}
}

func TestSynthesizeKeepsModelTopicsAboveFloor(t *testing.T) {
	original := []types.Topic{
		{Title: "A", StartS: 0, EndS: 60},
		{Title: "B", StartS: 60, EndS: 120},
	}
	lm := &stubLM{response: `{"executive_summary": "fine", "topics": [
		{"title": "A", "timestamp_range": ["00:00:00", "00:01:00"]},
		{"title": "B", "timestamp_range": ["00:01:00", "00:02:00"]}
	], "key_takeaways": ["k"]}`}
	got := testAI(t, lm).Synthesize(context.Background(), TranscriptAnalysis{Topics: original}, nil, 120, GenreUnknown, "")
	if len(got.Topics) != 2 || got.Topics[1].StartS != 60 {
		t.Fatalf("topics = %+v", got.Topics)
	}
}

func TestSynthesizeErrorFallsBackToAnalysis(t *testing.T) {
	analysis := TranscriptAnalysis{
		Topics:       []types.Topic{{Title: "Only"}},
		KeyTakeaways: []string{"keep"},
		Entities:     types.Entities{"people": {"Ada"}},
	}
	lm := &stubLM{err: errors.New("down")}
	got := testAI(t, lm).Synthesize(context.Background(), analysis, nil, 60, GenreUnknown, "")
	if len(got.Topics) != 1 || got.Topics[0].Title != "Only" {
		t.Fatalf("topics = %+v", got.Topics)
	}
	if len(got.KeyTakeaways) != 1 || len(got.Entities["people"]) != 1 {
		t.Fatalf("fallback = %+v", got)
	}
}

func TestGenerateSlideSummaryCapsAtFive(t *testing.T) {
	var slides []string
	for i := 0; i < 8; i++ {
		slides = append(slides, fmt.Sprintf(`{"title": "S%d", "bullets": ["b"]}`, i))
	}
	lm := &stubLM{response: fmt.Sprintf(`{"slides": [%s]}`, strings.Join(slides, ","))}
	got, err := testAI(t, lm).GenerateSlideSummary(context.Background(), "spoken words", "sum", []string{"k"}, nil, 300, GenreUnknown)
	if err != nil {
		t.Fatalf("GenerateSlideSummary: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("slides = %d, want 5", len(got))
	}
}

func TestGenerateSlideSummaryGroundsOnTranscript(t *testing.T) {
	// The canned answer only fires when the prompt carries the transcript;
	// otherwise the stub returns unparseable emptiness.
	lm := &stubLM{byPrompt: map[string]string{
		"goroutines beat threads": `{"slides": [{"title": "S", "bullets": ["b"]}]}`,
	}}
	ai := testAI(t, lm)

	got, err := ai.GenerateSlideSummary(context.Background(),
		"the speaker argues goroutines beat threads for io-bound work",
		"sum", []string{"k"}, nil, 300, GenreUnknown)
	if err != nil || len(got) != 1 {
		t.Fatalf("slides = %v, err = %v", got, err)
	}

	// Past the excerpt cap the transcript tail must not reach the prompt.
	long := strings.Repeat("a", maxSlideTranscriptChars) + " goroutines beat threads"
	if _, err := ai.GenerateSlideSummary(context.Background(), long, "sum", []string{"k"}, nil, 300, GenreUnknown); err == nil {
		t.Fatal("truncated transcript still matched the stub")
	}
}

func TestEvaluateFrameFailureReadsNotUseful(t *testing.T) {
	lm := &stubLM{err: errors.New("quota")}
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	writeTestJPEG(t, path)
	got := testAI(t, lm).EvaluateFrame(context.Background(), path)
	if got.IsUseful {
		t.Fatalf("frame marked useful on error: %+v", got)
	}
	// Error drops are tagged distinctly from genuine "other" frames.
	if got.Category != "error" {
		t.Fatalf("category = %q, want %q", got.Category, "error")
	}
}

func writeTestJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 16), 0, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
}
