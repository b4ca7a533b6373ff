package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/videomind-backend/internal/config"
	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/pipeline"
	"github.com/yungbote/videomind-backend/internal/repos"
	"github.com/yungbote/videomind-backend/internal/types"
)

type stubBucket struct {
	objects map[string][]byte
	deleted []string
}

func (b *stubBucket) UploadFile(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *stubBucket) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *stubBucket) DeleteFile(_ context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.objects, key)
	return nil
}

func videosFixture(t *testing.T) (*gin.Engine, repos.VideoJobRepo, *stubBucket, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.VideoJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	jobs := repos.NewVideoJobRepo(db, log)
	bucket := &stubBucket{objects: map[string][]byte{}}
	tempDir := t.TempDir()
	h := NewVideosHandler(&config.Config{TempDir: tempDir}, jobs, pipeline.NewManager(nil, log), nil, nil, bucket)

	router := gin.New()
	router.GET("/audio/:id", h.DownloadAudio)
	router.DELETE("/:id", h.Delete)
	return router, jobs, bucket, tempDir
}

func TestDownloadAudioFallsBackToBucket(t *testing.T) {
	router, jobs, bucket, tempDir := videosFixture(t)

	job := &types.VideoJob{
		VideoSource: types.VideoSourceYouTube,
		VideoName:   "archived",
		Status:      types.JobStatusCompleted,
		AudioPath:   filepath.Join(tempDir, "long_gone.wav"),
	}
	if err := jobs.Create(nil, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	key := "audio/" + job.ID.String() + ".wav"
	bucket.objects[key] = []byte("archived wav bytes")
	if err := jobs.UpdateFields(nil, job.ID, map[string]any{"audio_object_key": key}); err != nil {
		t.Fatalf("update: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/audio/"+job.ID.String(), nil))

	if w.Code != 200 {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if w.Body.String() != "archived wav bytes" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Fatal("missing Content-Disposition header")
	}
}

func TestDownloadAudioPrefersLocalCopy(t *testing.T) {
	router, jobs, bucket, tempDir := videosFixture(t)

	local := filepath.Join(tempDir, "audio.wav")
	if err := os.WriteFile(local, []byte("local wav bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	job := &types.VideoJob{
		VideoSource: types.VideoSourceYouTube,
		VideoName:   "fresh",
		Status:      types.JobStatusCompleted,
		AudioPath:   local,
	}
	if err := jobs.Create(nil, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	key := "audio/" + job.ID.String() + ".wav"
	bucket.objects[key] = []byte("stale archive bytes")
	if err := jobs.UpdateFields(nil, job.ID, map[string]any{"audio_object_key": key}); err != nil {
		t.Fatalf("update: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/audio/"+job.ID.String(), nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "local wav bytes" {
		t.Fatalf("body = %q, want the on-disk copy", w.Body.String())
	}
}

func TestDeleteRemovesArchivedAudio(t *testing.T) {
	router, jobs, bucket, _ := videosFixture(t)

	job := &types.VideoJob{
		VideoSource: types.VideoSourceYouTube,
		VideoName:   "doomed",
		Status:      types.JobStatusCompleted,
	}
	if err := jobs.Create(nil, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	key := "audio/" + job.ID.String() + ".wav"
	bucket.objects[key] = []byte("bytes")
	if err := jobs.UpdateFields(nil, job.ID, map[string]any{"audio_object_key": key}); err != nil {
		t.Fatalf("update: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/"+job.ID.String(), nil))

	if w.Code != 200 {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if len(bucket.deleted) != 1 || bucket.deleted[0] != key {
		t.Fatalf("deleted objects = %v, want [%s]", bucket.deleted, key)
	}
	if _, err := jobs.GetByID(nil, job.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("GetByID after delete = %v, want ErrRecordNotFound", err)
	}
}
