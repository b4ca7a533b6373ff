package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/repos"
	"github.com/yungbote/videomind-backend/internal/services"
	"github.com/yungbote/videomind-backend/internal/types"
)

type PlaylistsHandler struct {
	log       *logger.Logger
	playlists repos.PlaylistRepo
	jobs      repos.VideoJobRepo
	service   services.PlaylistService
}

func NewPlaylistsHandler(
	playlists repos.PlaylistRepo,
	jobs repos.VideoJobRepo,
	service services.PlaylistService,
	log *logger.Logger,
) *PlaylistsHandler {
	return &PlaylistsHandler{
		log:       log.With("handler", "playlists"),
		playlists: playlists,
		jobs:      jobs,
		service:   service,
	}
}

// POST /api/playlists/process
func (h *PlaylistsHandler) Process(c *gin.Context) {
	var req types.ProcessPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	playlist, err := h.service.CreateFromYouTube(c.Request.Context(), req.PlaylistURL, req.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "playlist_create_failed", err)
		return
	}

	// Sequential processing happens off the request; poll GET for progress.
	go func(id uuid.UUID) {
		if err := h.service.Process(context.Background(), id); err != nil {
			h.log.Error("Playlist processing failed", "playlist_id", id.String(), "error", err)
		}
	}(playlist.ID)

	RespondOK(c, gin.H{"playlist": playlist})
}

// GET /api/playlists/:id
func (h *PlaylistsHandler) Get(c *gin.Context) {
	playlist, ok := h.loadPlaylist(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.ListByPlaylist(nil, playlist.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}

	statuses := make([]types.JobStatusResponse, 0, len(jobs))
	for i := range jobs {
		statuses = append(statuses, types.NewJobStatusResponse(&jobs[i]))
	}
	RespondOK(c, gin.H{"playlist": playlist, "videos": statuses})
}

// GET /api/topics/:id/progress — the lightweight poll target while a batch
// runs: aggregate progress plus one status line per video.
func (h *PlaylistsHandler) Progress(c *gin.Context) {
	playlist, ok := h.loadPlaylist(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.ListByPlaylist(nil, playlist.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}

	videos := make([]types.JobStatusResponse, 0, len(jobs))
	for i := range jobs {
		videos = append(videos, types.NewJobStatusResponse(&jobs[i]))
	}
	RespondOK(c, gin.H{
		"id":           playlist.ID.String(),
		"status":       playlist.Status,
		"progress":     playlist.Progress,
		"videos_done":  playlist.VideosDone,
		"total_videos": playlist.TotalVideos,
		"videos":       videos,
	})
}

// GET /api/playlists?user_id=&page=&limit=
func (h *PlaylistsHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	playlists, total, err := h.playlists.List(nil, c.Query("user_id"), page, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"playlists": playlists, "total": total, "page": page, "limit": limit})
}

// DELETE /api/playlists/:id
func (h *PlaylistsHandler) Delete(c *gin.Context) {
	playlist, ok := h.loadPlaylist(c)
	if !ok {
		return
	}
	if playlist.Status == types.PlaylistStatusProcessing {
		RespondError(c, http.StatusBadRequest, "still_processing",
			fmt.Errorf("playlist is still processing"))
		return
	}
	if err := h.playlists.Delete(nil, playlist.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"message": fmt.Sprintf("playlist %s deleted", playlist.ID)})
}

func (h *PlaylistsHandler) loadPlaylist(c *gin.Context) (*types.Playlist, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_playlist_id", err)
		return nil, false
	}
	playlist, err := h.playlists.GetByID(nil, id)
	if err != nil {
		status := http.StatusInternalServerError
		code := "lookup_failed"
		if err == gorm.ErrRecordNotFound {
			status = http.StatusNotFound
			code = "playlist_not_found"
		}
		RespondError(c, status, code, err)
		return nil, false
	}
	return playlist, true
}
