package services

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractYouTubeID(t *testing.T) {
	s := &ingestService{}
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://example.com/video", "", false},
		{"tooshort", "", false},
	}
	for _, tc := range cases {
		got, err := s.ExtractYouTubeID(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ExtractYouTubeID(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ExtractYouTubeID(%q) succeeded with %q, want error", tc.in, got)
		}
	}
}

func TestParsePlaylistDump(t *testing.T) {
	raw := []byte(`{
		"title": "Go Lectures",
		"uploader": "Some Channel",
		"entries": [
			{"id": "aaaaaaaaaaa", "title": "Part 1", "duration": 600},
			{"id": "", "title": "deleted"},
			{"id": "bbbbbbbbbbb", "duration": 0}
		]
	}`)
	info, err := parsePlaylistDump(raw)
	if err != nil {
		t.Fatalf("parsePlaylistDump: %v", err)
	}
	if info.Title != "Go Lectures" || info.Channel != "Some Channel" {
		t.Fatalf("header = %+v", info)
	}
	if len(info.Videos) != 2 {
		t.Fatalf("videos = %d: %+v", len(info.Videos), info.Videos)
	}
	if info.Videos[0].VideoURL != "https://www.youtube.com/watch?v=aaaaaaaaaaa" {
		t.Fatalf("url = %q", info.Videos[0].VideoURL)
	}
	// Untitled entry gets a positional name.
	if !strings.HasPrefix(info.Videos[1].Title, "Video ") {
		t.Fatalf("title = %q", info.Videos[1].Title)
	}
	if info.Videos[1].Order != 2 {
		t.Fatalf("order = %d", info.Videos[1].Order)
	}
}

func TestParsePlaylistDumpGarbage(t *testing.T) {
	if _, err := parsePlaylistDump([]byte("not json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestFindDownloadedFileRenames(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "source")
	want := base + ".mp4"
	if err := os.WriteFile(base+".webm", []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, ok := findDownloadedFile(base, want)
	if !ok || got != want {
		t.Fatalf("findDownloadedFile = %q, %v", got, ok)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
}

func TestFindDownloadedFileIgnoresEmpty(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "source")
	if err := os.WriteFile(base+".mp4", nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := findDownloadedFile(base, base+".mp4"); ok {
		t.Fatal("empty file accepted")
	}
}

func TestSaveUpload(t *testing.T) {
	dir := t.TempDir()
	s := &ingestService{}

	dest := filepath.Join(dir, "nested", "upload.mp4")
	got, err := s.SaveUpload(bytes.NewReader([]byte("video-bytes")), dest)
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if got != dest {
		t.Fatalf("path = %q", got)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "video-bytes" {
		t.Fatalf("content = %q, %v", data, err)
	}

	if _, err := s.SaveUpload(bytes.NewReader(nil), filepath.Join(dir, "empty.mp4")); err == nil {
		t.Fatal("empty upload accepted")
	}
}

func TestResolveCookiesPath(t *testing.T) {
	if got := resolveCookiesPath(""); got != "" {
		t.Fatalf("empty config = %q", got)
	}
	if got := resolveCookiesPath("/nonexistent/cookies.txt"); got != "" {
		t.Fatalf("missing file = %q", got)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(path, []byte("# Netscape"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := resolveCookiesPath(path); got != path {
		t.Fatalf("resolved = %q, want %q", got, path)
	}
}
