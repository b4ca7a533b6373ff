package repos

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&types.VideoJob{}, &types.Playlist{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestVideoJobCreateAndGet(t *testing.T) {
	repo := NewVideoJobRepo(testDB(t), testLogger(t))

	job := &types.VideoJob{
		VideoSource: types.VideoSourceDrive,
		VideoName:   "quarterly review",
		Status:      types.JobStatusPending,
		UserID:      "u1",
	}
	if err := repo.Create(nil, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}

	got, err := repo.GetByID(nil, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VideoName != "quarterly review" || got.Status != types.JobStatusPending {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestVideoJobUpdateFields(t *testing.T) {
	repo := NewVideoJobRepo(testDB(t), testLogger(t))
	job := &types.VideoJob{VideoSource: types.VideoSourceYouTube, Status: types.JobStatusPending}
	if err := repo.Create(nil, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.UpdateFields(nil, job.ID, map[string]any{
		"status":   types.JobStatusTranscribing,
		"progress": 0.35,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(nil, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.JobStatusTranscribing {
		t.Fatalf("status = %q, want transcribing", got.Status)
	}
	if got.Progress != 0.35 {
		t.Fatalf("progress = %v, want 0.35", got.Progress)
	}

	if err := repo.UpdateFields(nil, uuid.New(), map[string]any{"status": "x"}); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestVideoJobAppendProgress(t *testing.T) {
	repo := NewVideoJobRepo(testDB(t), testLogger(t))
	job := &types.VideoJob{VideoSource: types.VideoSourceDrive, Status: types.JobStatusPending}
	if err := repo.Create(nil, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, msg := range []string{"Downloading video", "Extracting audio", "Transcribing chunk 1/4"} {
		if err := repo.AppendProgress(nil, job.ID, msg); err != nil {
			t.Fatalf("append %q: %v", msg, err)
		}
	}

	got, err := repo.GetByID(nil, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentAction != "Transcribing chunk 1/4" {
		t.Fatalf("current_action = %q", got.CurrentAction)
	}
	var entries []types.LogEntry
	if err := json.Unmarshal(got.ProcessingLog, &entries); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("log entries = %d, want 3", len(entries))
	}
	if entries[0].Message != "Downloading video" || entries[2].Message != "Transcribing chunk 1/4" {
		t.Fatalf("log out of order: %+v", entries)
	}
}

func TestVideoJobListFiltersAndPaginates(t *testing.T) {
	repo := NewVideoJobRepo(testDB(t), testLogger(t))

	for i := 0; i < 5; i++ {
		status := types.JobStatusCompleted
		if i%2 == 1 {
			status = types.JobStatusFailed
		}
		job := &types.VideoJob{VideoSource: types.VideoSourceDrive, Status: status, UserID: "alice"}
		if err := repo.Create(nil, job); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := &types.VideoJob{VideoSource: types.VideoSourceDrive, Status: types.JobStatusCompleted, UserID: "bob"}
	if err := repo.Create(nil, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	jobs, total, err := repo.List(nil, "alice", 1, 2, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3 completed jobs for alice", total)
	}
	if len(jobs) != 2 {
		t.Fatalf("page len = %d, want 2", len(jobs))
	}

	jobs, total, err = repo.List(nil, "", 1, 50, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 6 || len(jobs) != 6 {
		t.Fatalf("all jobs: total=%d len=%d, want 6", total, len(jobs))
	}
}

func TestVideoJobDelete(t *testing.T) {
	repo := NewVideoJobRepo(testDB(t), testLogger(t))
	job := &types.VideoJob{VideoSource: types.VideoSourceDrive, Status: types.JobStatusPending}
	if err := repo.Create(nil, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(nil, job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(nil, job.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound after delete, got %v", err)
	}
	if err := repo.Delete(nil, job.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("double delete: %v", err)
	}
}

func TestPlaylistRoundTrip(t *testing.T) {
	gdb := testDB(t)
	log := testLogger(t)
	playlists := NewPlaylistRepo(gdb, log)
	jobs := NewVideoJobRepo(gdb, log)

	p := &types.Playlist{Name: "conference talks", UserID: "alice", TotalVideos: 2}
	if err := playlists.Create(nil, p); err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	for i := 0; i < 2; i++ {
		job := &types.VideoJob{
			VideoSource: types.VideoSourceYouTube,
			Status:      types.JobStatusPending,
			PlaylistID:  &p.ID,
		}
		if err := jobs.Create(nil, job); err != nil {
			t.Fatalf("create job: %v", err)
		}
	}

	members, err := jobs.ListByPlaylist(nil, p.ID)
	if err != nil {
		t.Fatalf("list by playlist: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}

	if err := playlists.UpdateFields(nil, p.ID, map[string]any{
		"status":      types.PlaylistStatusCompleted,
		"videos_done": 2,
	}); err != nil {
		t.Fatalf("update playlist: %v", err)
	}
	got, err := playlists.GetByID(nil, p.ID)
	if err != nil {
		t.Fatalf("get playlist: %v", err)
	}
	if got.Status != types.PlaylistStatusCompleted || got.VideosDone != 2 {
		t.Fatalf("unexpected playlist: %+v", got)
	}
}
