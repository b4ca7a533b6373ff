package gdrive

import (
	"context"
	"testing"
	"time"
)

func TestExtractFileID(t *testing.T) {
	s := &service{}
	cases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"file path url", "https://drive.google.com/file/d/1AbC_dEf-123/view?usp=sharing", "1AbC_dEf-123", false},
		{"open id url", "https://drive.google.com/open?id=1AbC_dEf-123&usp=drive", "1AbC_dEf-123", false},
		{"uc id url", "https://drive.google.com/uc?export=download&id=xyz789", "xyz789", false},
		{"bare id", "1AbC_dEf-123", "1AbC_dEf-123", false},
		{"unrecognized drive url", "https://drive.google.com/drive/folders", "", true},
		{"empty", "  ", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ExtractFileID(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPaceSpacesConsecutiveUploads(t *testing.T) {
	s := &service{}
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.pace(context.Background()); err != nil {
			t.Fatalf("pace %d: %v", i, err)
		}
	}
	// First slot is immediate; the next two each wait a full spacing.
	if elapsed := time.Since(start); elapsed < 2*uploadSpacing {
		t.Fatalf("three uploads took %v, want at least %v", elapsed, 2*uploadSpacing)
	}
}

func TestPaceHonorsCancellation(t *testing.T) {
	s := &service{}
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.pace(ctx); err != nil {
		t.Fatalf("first pace: %v", err)
	}
	cancel()
	if err := s.pace(ctx); err == nil {
		t.Fatal("pace accepted a cancelled context")
	}
}

func TestURLHelpers(t *testing.T) {
	s := &service{}
	if got := s.ThumbnailURL("abc"); got != "https://drive.google.com/thumbnail?id=abc&sz=w800" {
		t.Fatalf("thumbnail url = %q", got)
	}
	if got := s.FileURL("abc"); got != "https://drive.google.com/file/d/abc/view" {
		t.Fatalf("file url = %q", got)
	}
}
