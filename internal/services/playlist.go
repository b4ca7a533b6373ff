package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/repos"
	"github.com/yungbote/videomind-backend/internal/types"
)

// JobRunner processes one job to completion on the calling goroutine. The
// pipeline manager satisfies this; an interface keeps the dependency pointing
// one way.
type JobRunner interface {
	RunSync(ctx context.Context, jobID uuid.UUID, playlistContext string) error
}

// PlaylistService turns a YouTube playlist into a batch of jobs and processes
// them strictly in order, feeding each video the summaries of the chapters
// before it.
type PlaylistService interface {
	CreateFromYouTube(ctx context.Context, playlistURL, userID string) (*types.Playlist, error)
	Process(ctx context.Context, playlistID uuid.UUID) error
}

type playlistService struct {
	log       *logger.Logger
	playlists repos.PlaylistRepo
	jobs      repos.VideoJobRepo
	ingest    IngestService
	ai        VideoAIService
	runner    JobRunner
}

func NewPlaylistService(
	playlists repos.PlaylistRepo,
	jobs repos.VideoJobRepo,
	ingest IngestService,
	ai VideoAIService,
	runner JobRunner,
	log *logger.Logger,
) PlaylistService {
	return &playlistService{
		log:       log.With("service", "PlaylistService"),
		playlists: playlists,
		jobs:      jobs,
		ingest:    ingest,
		ai:        ai,
		runner:    runner,
	}
}

// CreateFromYouTube lists the playlist and creates a pending job per video.
// Processing starts separately.
func (s *playlistService) CreateFromYouTube(ctx context.Context, playlistURL, userID string) (*types.Playlist, error) {
	info, err := s.ingest.YouTubePlaylistInfo(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("extract playlist: %w", err)
	}
	if len(info.Videos) == 0 {
		return nil, fmt.Errorf("playlist %q has no videos", info.Title)
	}

	playlist := &types.Playlist{
		Name:        info.Title,
		UserID:      userID,
		Status:      types.PlaylistStatusPending,
		TotalVideos: len(info.Videos),
	}
	if err := s.playlists.Create(nil, playlist); err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}

	order := make([]string, 0, len(info.Videos))
	for _, v := range info.Videos {
		job := &types.VideoJob{
			VideoSource: types.VideoSourceYouTube,
			YouTubeURL:  v.VideoURL,
			VideoName:   v.Title,
			UserID:      userID,
			PlaylistID:  &playlist.ID,
			Status:      types.JobStatusPending,
		}
		if err := s.jobs.Create(nil, job); err != nil {
			return nil, fmt.Errorf("create job for %q: %w", v.Title, err)
		}
		order = append(order, job.ID.String())
	}

	orderJSON, _ := json.Marshal(order)
	if err := s.playlists.UpdateFields(nil, playlist.ID, map[string]any{
		"video_order": orderJSON,
	}); err != nil {
		return nil, fmt.Errorf("store video order: %w", err)
	}
	playlist.VideoOrder = orderJSON

	s.log.Info("Created playlist", "playlist_id", playlist.ID.String(),
		"title", info.Title, "videos", len(info.Videos))
	return playlist, nil
}

// Process runs every job in order. A failed video does not stop the batch;
// the playlist ends completed, partial, or failed depending on how many got
// through.
func (s *playlistService) Process(ctx context.Context, playlistID uuid.UUID) error {
	playlist, err := s.playlists.GetByID(nil, playlistID)
	if err != nil {
		return fmt.Errorf("load playlist: %w", err)
	}

	jobIDs, err := decodeVideoOrder(playlist.VideoOrder)
	if err != nil {
		s.failPlaylist(playlistID, err)
		return err
	}
	total := len(jobIDs)

	s.updatePlaylist(playlistID, map[string]any{
		"status":   types.PlaylistStatusProcessing,
		"progress": 0.0,
	})

	var done int
	for i, jobID := range jobIDs {
		if ctx.Err() != nil {
			s.failPlaylist(playlistID, ctx.Err())
			return ctx.Err()
		}
		s.log.Info("Processing playlist video", "playlist_id", playlistID.String(),
			"position", i+1, "total", total, "job_id", jobID.String())

		playlistContext := s.buildContext(playlist.Name, jobIDs, i)
		if err := s.runner.RunSync(ctx, jobID, playlistContext); err != nil {
			s.log.Warn("Playlist video failed", "job_id", jobID.String(), "error", err)
		}

		// The pipeline marks jobs failed internally; trust the row, not the
		// returned error.
		if job, jerr := s.jobs.GetByID(nil, jobID); jerr == nil && job.Status == types.JobStatusCompleted {
			done++
		}
		s.updatePlaylist(playlistID, map[string]any{
			"videos_done": done,
			"progress":    float64(done) / float64(total),
		})
	}

	status := types.PlaylistStatusCompleted
	if done == 0 {
		status = types.PlaylistStatusFailed
	} else if done < total {
		status = types.PlaylistStatusPartial
	}
	s.updatePlaylist(playlistID, map[string]any{
		"status":   status,
		"progress": float64(done) / float64(total),
	})
	s.log.Info("Playlist processing finished", "playlist_id", playlistID.String(),
		"done", done, "total", total, "status", status)

	if done > 0 {
		s.generateSeriesSummary(ctx, playlistID, playlist.Name, jobIDs)
	}
	return nil
}

// buildContext digests the already-completed chapters so the next video's
// analysis can reference prior material instead of re-explaining it.
func (s *playlistService) buildContext(playlistName string, jobIDs []uuid.UUID, current int) string {
	if current == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "PLAYLIST CONTEXT: This video is Chapter %d of %d in %q.\n", current+1, len(jobIDs), playlistName)
	sb.WriteString("Previously covered chapters:\n")

	var any bool
	for i := 0; i < current; i++ {
		job, err := s.jobs.GetByID(nil, jobIDs[i])
		if err != nil || job.Status != types.JobStatusCompleted {
			continue
		}
		any = true

		summary := job.ExecutiveSummary
		if len(summary) > 200 {
			summary = summary[:200] + "..."
		}
		fmt.Fprintf(&sb, "- Chapter %d: %q — %s\n", i+1, job.VideoName, summary)

		if takeaways := decodeTakeaways(job.KeyTakeaways); len(takeaways) > 0 {
			if len(takeaways) > 3 {
				takeaways = takeaways[:3]
			}
			fmt.Fprintf(&sb, "  Key concepts: %s\n", strings.Join(takeaways, "; "))
		}
	}
	if !any {
		return ""
	}

	sb.WriteString("\nUse this context to: avoid re-explaining concepts already introduced, " +
		"note when this video builds on prior material, and highlight what is NEW in this chapter.")
	return sb.String()
}

// generateSeriesSummary is a bonus pass; failures only log.
func (s *playlistService) generateSeriesSummary(ctx context.Context, playlistID uuid.UUID, name string, jobIDs []uuid.UUID) {
	var chapters []ChapterSummary
	for i, jobID := range jobIDs {
		job, err := s.jobs.GetByID(nil, jobID)
		if err != nil || job.Status != types.JobStatusCompleted {
			continue
		}
		chapters = append(chapters, ChapterSummary{
			Number:           i + 1,
			Title:            job.VideoName,
			ExecutiveSummary: job.ExecutiveSummary,
			KeyTakeaways:     decodeTakeaways(job.KeyTakeaways),
			DurationMinutes:  job.DurationSeconds / 60,
		})
	}
	if len(chapters) == 0 {
		return
	}

	summary, err := s.ai.SummarizeSeries(ctx, name, chapters)
	if err != nil {
		s.log.Warn("Series summary failed", "playlist_id", playlistID.String(), "error", err)
		return
	}
	s.updatePlaylist(playlistID, map[string]any{"series_summary": summary})
}

func (s *playlistService) failPlaylist(playlistID uuid.UUID, cause error) {
	s.updatePlaylist(playlistID, map[string]any{
		"status":        types.PlaylistStatusFailed,
		"error_message": cause.Error(),
	})
}

func (s *playlistService) updatePlaylist(playlistID uuid.UUID, fields map[string]any) {
	if err := s.playlists.UpdateFields(nil, playlistID, fields); err != nil {
		s.log.Warn("Playlist update failed", "playlist_id", playlistID.String(), "error", err)
	}
}

func decodeVideoOrder(raw []byte) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("playlist has no video order")
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode video order: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(order))
	for _, s := range order {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("bad job id %q in video order: %w", s, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("playlist has no videos")
	}
	return ids, nil
}

func decodeTakeaways(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
