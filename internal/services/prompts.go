package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/videomind-backend/internal/types"
)

// Prompt builders for the analysis operations. Each prompt pins the output
// JSON shape inline; DecodeLoose on the other side tolerates the usual model
// formatting slips.

func classifyGenrePrompt(sample string, duration float64) string {
	return fmt.Sprintf(`You are classifying the genre of a video from a transcript sample.
Video duration: %s.

Pick ONE best genre from this list (return exactly one key as 'genre'):
- podcast_panel (multiple speakers, conversational)
- educational_lecture (single speaker teaching/tutorial)
- interview_qna (interviewer + guest Q&A)
- vlog (personal day-in-life / travel / activities)
- meeting_presentation (work/meeting/agenda/action-items)
- single_speaker_general (single speaker talk, non-educational)
- unknown

Transcript sample:
%s

Return ONLY valid JSON:
{
  "genre": "educational_lecture",
  "confidence": 0.0,
  "reason": "Short reason based on transcript cues"
}`, FormatTimestamp(duration), sample)
}

func visualCueScoutPrompt(formattedTranscript string) string {
	return fmt.Sprintf(`You are a Video Editor Assistant. Your task is to identify specific timestamps in the transcript where the speaker explicitly references visual information being shown on screen.

Look for cues such as:
- "As you can see on this chart..."
- "Looking at this graph..."
- "If we turn to the next slide..."
- "Here in the code..."
- "This diagram illustrates..."

Transcript Segment:
%s

Return a JSON object with a list of "visual_cues":
{
  "visual_cues": [
    {
      "timestamp": "00:04:23",
      "cue_phrase": "As shown in this bar chart",
      "confidence": "high",
      "expected_visual_type": "chart"
    }
  ]
}

expected_visual_type options: slide, demo, code, diagram, unknown.
If no cues are found, return an empty list.`, formattedTranscript)
}

const gatekeeperPrompt = `Analyze this video frame. Your goal is to determine if this frame contains valuable static information (like a presentation slide, coding terminal, or data dashboard) or if it is generic footage (like a person talking or a transition).

Classify the image into one of these categories:
1. "slide_presentation" (PowerPoint, Keynote)
2. "software_demo" (IDE, Dashboard, Browser)
3. "technical_diagram" (Whiteboard, Architecture)
4. "talking_head" (Person on camera)
5. "other"

Return JSON:
{
  "category": "slide_presentation",
  "information_density": "high",
  "contains_text": true,
  "is_useful": true
}

information_density options: high, medium, low, none.
Set is_useful to false if the frame is blurry, a transition, or just a person.`

const transcribePrompt = `Transcribe this audio with speaker diarization.
Label speakers as Speaker A, Speaker B, etc.

Return the transcription in the following JSON format:
{
    "segments": [
        {
            "text": "transcribed text",
            "start_time": 0.0,
            "end_time": 5.2,
            "speaker": "Speaker A"
        }
    ]
}

Provide accurate timestamps in seconds relative to the start of this audio clip.`

const simpleTranscribePrompt = `Transcribe this audio verbatim. Identify different speakers if possible.`

func analyzeChunkPrompt(transcriptText string, duration float64, chunkIdx, totalChunks int, chunkStart, chunkEnd float64, genre string) string {
	durationTS := FormatTimestamp(duration)
	chunkInfo := ""
	if totalChunks > 1 {
		chunkInfo = fmt.Sprintf(" (part %d/%d)", chunkIdx+1, totalChunks)
	}
	timeInfo := ""
	if totalChunks > 1 {
		timeInfo = fmt.Sprintf("\n\nIMPORTANT: This transcript chunk covers video time %s to %s out of total duration %s.",
			FormatTimestamp(chunkStart), FormatTimestamp(chunkEnd), durationTS)
	}

	return fmt.Sprintf(`Analyze this video transcript%s (total video duration: %.1f minutes = %s) and extract topics that span the ENTIRE video duration.

CRITICAL: You must analyze the transcript and generate topics with timestamps that cover the FULL video duration from 00:00:00 to %s. Do not stop at just the beginning or middle - ensure topics are distributed throughout the entire video.%s

%s

Extract the following:

1. Topic segmentation: Break the video into logical chapters/sections with start/end timestamps covering the ENTIRE duration (00:00:00 to %s)
   - Each topic should have clear start and end timestamps
   - Topics should progress chronologically through the video
   - Ensure topics cover from the start to the end of the video
2. Key moments: Important phrases that likely reference visuals ("as shown", "this slide", etc.)
3. Named entities: People, companies, tools, concepts mentioned
4. Key takeaways: Main insights from the content

Transcript:
%s

Return analysis in this JSON format (ensure topics cover the full video duration):
{
    "topics": [
        {
            "title": "Topic title",
            "timestamp_range": ["00:00:00", "00:15:30"],
            "summary": "Brief summary",
            "key_points": ["point 1", "point 2"],
            "type": "content"
        }
    ],
    "visual_cues": [
        {
            "timestamp": "00:05:23",
            "cue_text": "as you can see on this slide",
            "context": "surrounding context"
        }
    ],
    "entities": {
        "people": ["name1", "name2"],
        "companies": ["company1"],
        "concepts": ["concept1", "concept2"],
        "tools": ["tool1"]
    },
    "key_takeaways": ["takeaway 1", "takeaway 2"]
}

Mark sponsor reads and ad breaks with "type": "ad"; everything else is "type": "content".
Remember: Generate topics that span from 00:00:00 to %s to cover the entire video.`,
		chunkInfo, duration/60, durationTS, durationTS, timeInfo,
		genreSnippet(genre, "analysis"), durationTS, transcriptText, durationTS)
}

func clusterAnalysisPrompt(frameCount int, startS, endS float64) string {
	return fmt.Sprintf(`I am providing you with %d frames captured within a processing window from %s to %s. These likely represent the same slide or visual element, potentially with slight animations or cursor movements.

Task 1: Select the "Hero Frame". This is the frame that is most focused, least blurry, and contains the most complete information (e.g., the full list is revealed, or the slide build is complete).
Task 2: Extract the title or main heading from that frame.
Task 3: Summarize the specific data or concept shown in that frame (do not summarize the audio, only what is VISIBLE).

Return JSON:
{
  "hero_frame_index": 0,
  "sub_topic_title": "Slide Title",
  "visual_summary": "Description of the visual content (chart trends, code purpose, diagram flow)",
  "ocr_keywords": ["keyword1", "keyword2"]
}

hero_frame_index is the index of the selected best image (0 to %d).`,
		frameCount, FormatTimestamp(startS), FormatTimestamp(endS), frameCount-1)
}

func mapVisualsPrompt(mainTopics, visuals any) string {
	topicsJSON, _ := json.MarshalIndent(mainTopics, "", "  ")
	visualsJSON, _ := json.MarshalIndent(visuals, "", "  ")
	return fmt.Sprintf(`You are a Report Structuring Engine. I have a list of "Main Topics" derived from the audio transcript, and a list of "Visual Sub-Topics" derived from analyzing screenshots.

Your task is to nest the Visual Sub-Topics under the correct Main Topic based on their timestamps.

Rules:
1. A Visual Sub-Topic belongs to a Main Topic if its timestamp falls within the Main Topic's start/end range.
2. If a Main Topic has more than 3 visual sub-topics, select the 3 most distinct ones based on their titles and summaries to avoid repetition.
3. If a visual doesn't fit any main topic perfectly, fit it to the nearest logical topic.

Input Data:
Main Topics: %s
Visual Sub-Topics: %s

Return the Final JSON Structure:
{
  "topics": [
    {
      "title": "Main Topic Title",
      "sub_topics": [
        {
          "title": "Visual Sub-Topic Title",
          "visual_summary": "Summary...",
          "timestamp": "HH:MM:SS",
          "original_index": 0
        }
      ]
    }
  ]
}`, topicsJSON, visualsJSON)
}

func synthesisPrompt(topicsPreview, framesPreview string, topicCount, frameCount int, duration float64, genre, playlistContext string) string {
	durationTS := FormatTimestamp(duration)
	playlistInfo := ""
	if playlistContext != "" {
		playlistInfo = "\n\nSeries context (earlier videos in this playlist):\n" + playlistContext
	}
	return fmt.Sprintf(`You are synthesizing analysis of a %.1f-minute video (duration: %s).

IMPORTANT: You must preserve ALL topics from the transcript analysis. Do not filter, remove, or skip any topics.
All topics should cover the full video duration from 00:00:00 to %s.

%s%s

Transcript Topics (%d total - preserve ALL of them):
%s

Key Frames (%d total):
%s

Your task:
1. Generate an executive summary (3-5 sentences) covering the ENTIRE video
2. PRESERVE ALL topics from transcript analysis - do not filter or remove any
3. Ensure topics span the full video duration (00:00:00 to %s)
4. Extract actionable insights and key takeaways
5. List entities mentioned (companies, concepts, tools)

Return ONLY valid JSON (no trailing commas or newlines in strings):
{
    "executive_summary": "Clear summary covering the entire video...",
    "topics": [
        {
            "title": "Topic title",
            "timestamp_range": ["00:00:00", "00:15:30"],
            "summary": "Single line summary",
            "key_points": ["point 1", "point 2"],
            "type": "content"
        }
    ],
    "key_takeaways": ["takeaway 1", "takeaway 2"],
    "entities": {
        "companies": ["name1"],
        "concepts": ["concept1"],
        "tools": ["tool1"]
    }
}

CRITICAL: Include ALL %d topics in your response. Topics must cover from 00:00:00 to %s.`,
		duration/60, durationTS, durationTS,
		genreSnippet(genre, "synthesis"), playlistInfo,
		topicCount, topicsPreview, frameCount, framesPreview,
		durationTS, topicCount, durationTS)
}

func slideSummaryPrompt(transcriptExcerpt, executiveSummary string, keyTakeaways []string, topics []types.Topic, duration float64, genre string) string {
	var topicLines []string
	for _, t := range topics {
		topicLines = append(topicLines, fmt.Sprintf("- %s (%s - %s): %s",
			t.Title, FormatTimestamp(t.StartS), FormatTimestamp(t.EndS), t.Summary))
	}
	return fmt.Sprintf(`Create a 5-slide executive presentation summarizing a %.1f-minute video.

%s

Executive summary:
%s

Key takeaways:
%s

Topics:
%s

Transcript excerpt:
%s

Slide 1 must be an overview; the last slide must be conclusions/action items.
Each slide has a short title and 3-5 tight bullet points.

Return ONLY valid JSON:
{
  "slides": [
    {
      "title": "Slide title",
      "bullets": ["bullet 1", "bullet 2", "bullet 3"]
    }
  ]
}`, duration/60, genreSnippet(genre, "synthesis"), executiveSummary,
		"- "+strings.Join(keyTakeaways, "\n- "), strings.Join(topicLines, "\n"),
		transcriptExcerpt)
}

func seriesSummaryPrompt(seriesName string, chapters []ChapterSummary) string {
	chaptersJSON, _ := json.MarshalIndent(chapters, "", "  ")
	return fmt.Sprintf(`You are summarizing a video series/playlist titled %q as a curriculum.

Chapter digests (in order):
%s

Write a cohesive series summary (4-8 sentences) that describes the arc of the
series: what it starts with, how it progresses, and what a viewer knows by the
end. Mention standout chapters by number when relevant.

Return ONLY valid JSON:
{
  "series_summary": "..."
}`, seriesName, chaptersJSON)
}

func chatPrompt(job *types.VideoJob, transcriptText, topicsSummary, takeaways, question string) string {
	name := job.VideoName
	if name == "" {
		name = "this video"
	}
	return fmt.Sprintf(`You are a Video Insights Assistant helping users understand and analyze the video titled %q.

VIDEO OVERVIEW:
Genre: %s
Executive Summary: %s

KEY TAKEAWAYS:
%s

TOPICS COVERED:
%s

FULL TRANSCRIPT:
%s

Your role is to:
1. Answer questions about the video content, topics, and key points discussed
2. Provide specific quotes and timestamps when relevant
3. Stay grounded in the material above; say so when the video does not cover something

Question: %s`,
		name, job.Genre, job.ExecutiveSummary, takeaways, topicsSummary, transcriptText, question)
}
