package pipeline

import (
	"testing"

	"github.com/yungbote/videomind-backend/internal/types"
)

func TestPublishedHeroesDropsUnuploaded(t *testing.T) {
	heroes := []types.HeroFrame{
		{TimestampS: 10, BlobURL: "https://drive.google.com/thumbnail?id=a&sz=w800"},
		{TimestampS: 20},
		{TimestampS: 30, BlobURL: "https://drive.google.com/thumbnail?id=c&sz=w800"},
	}
	got := publishedHeroes(heroes)
	if len(got) != 2 {
		t.Fatalf("published = %d, want 2", len(got))
	}
	if got[0].TimestampS != 10 || got[1].TimestampS != 30 {
		t.Fatalf("order broken: %+v", got)
	}
	for _, h := range got {
		if h.BlobURL == "" {
			t.Fatalf("empty url survived: %+v", h)
		}
	}
}

func TestPublishedHeroesEmpty(t *testing.T) {
	if got := publishedHeroes(nil); len(got) != 0 {
		t.Fatalf("published = %+v", got)
	}
}
