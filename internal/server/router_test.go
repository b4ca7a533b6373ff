package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/videomind-backend/internal/config"
	"github.com/yungbote/videomind-backend/internal/handlers"
	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/pipeline"
	"github.com/yungbote/videomind-backend/internal/repos"
	"github.com/yungbote/videomind-backend/internal/types"
)

func routerFixture(t *testing.T) (*gin.Engine, repos.VideoJobRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.VideoJob{}, &types.Playlist{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	jobs := repos.NewVideoJobRepo(db, log)
	playlists := repos.NewPlaylistRepo(db, log)
	manager := pipeline.NewManager(nil, log)
	cfg := &config.Config{TempDir: t.TempDir()}

	router := NewRouter(RouterConfig{
		CORSOrigins:      []string{"http://localhost:5173"},
		VideosHandler:    handlers.NewVideosHandler(cfg, jobs, manager, nil, nil, nil),
		PlaylistsHandler: handlers.NewPlaylistsHandler(playlists, jobs, nil, log),
	})
	return router, jobs
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Every published route must at least be registered; requests that fail
// validation get a 4xx from the handler, never the router's 404.
func TestRouteSurface(t *testing.T) {
	router, _ := routerFixture(t)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/videos/process-youtube", `{}`, http.StatusBadRequest},
		{"GET", "/api/videos/reports", "", http.StatusOK},
		{"GET", "/api/videos/list", "", http.StatusOK},
		{"POST", "/api/videos/chat/not-a-uuid", `{"question": "q"}`, http.StatusBadRequest},
		{"POST", "/api/topics/process", `{}`, http.StatusBadRequest},
		{"GET", "/api/topics", "", http.StatusOK},
		{"GET", "/api/topics/not-a-uuid/progress", "", http.StatusBadRequest},
		{"GET", "/api/playlists", "", http.StatusOK},
		{"GET", "/healthcheck", "", http.StatusOK},
	}
	for _, tc := range cases {
		w := doRequest(t, router, tc.method, tc.path, tc.body)
		if w.Code == http.StatusNotFound {
			t.Fatalf("%s %s not registered", tc.method, tc.path)
		}
		if w.Code != tc.want {
			t.Fatalf("%s %s = %d, want %d (body %s)", tc.method, tc.path, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestReportsListsCompletedOnly(t *testing.T) {
	router, jobs := routerFixture(t)

	if err := jobs.Create(nil, &types.VideoJob{
		VideoSource: types.VideoSourceYouTube,
		VideoName:   "done",
		Status:      types.JobStatusCompleted,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jobs.Create(nil, &types.VideoJob{
		VideoSource: types.VideoSourceYouTube,
		VideoName:   "in flight",
		Status:      types.JobStatusTranscribing,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var got struct {
		Jobs  []map[string]any `json:"jobs"`
		Total int64            `json:"total"`
	}

	w := doRequest(t, router, "GET", "/api/videos/reports", "")
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 1 || len(got.Jobs) != 1 {
		t.Fatalf("reports = %d jobs, total %d; want 1", len(got.Jobs), got.Total)
	}
	if got.Jobs[0]["status"] != types.JobStatusCompleted {
		t.Fatalf("report status = %v", got.Jobs[0]["status"])
	}

	// The broader list still shows everything unless asked to filter.
	w = doRequest(t, router, "GET", "/api/videos/list", "")
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 2 {
		t.Fatalf("list total = %d, want 2", got.Total)
	}
}
