package gemini

import "testing"

func TestDecodeLooseCleanJSON(t *testing.T) {
	var out map[string]any
	if err := DecodeLoose(`{"genre": "vlog", "confidence": 0.9}`, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["genre"] != "vlog" {
		t.Fatalf("genre = %v", out["genre"])
	}
}

func TestDecodeLooseFencedBlock(t *testing.T) {
	text := "Here is the analysis you asked for:\n```json\n{\"topics\": [{\"title\": \"Intro\"}]}\n```\nLet me know if you need more."
	var out struct {
		Topics []struct {
			Title string `json:"title"`
		} `json:"topics"`
	}
	if err := DecodeLoose(text, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Topics) != 1 || out.Topics[0].Title != "Intro" {
		t.Fatalf("topics = %+v", out.Topics)
	}
}

func TestDecodeLooseSurroundingProse(t *testing.T) {
	text := `Sure! The result is {"summary": "a talk about Go"} as requested.`
	var out map[string]string
	if err := DecodeLoose(text, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["summary"] != "a talk about Go" {
		t.Fatalf("summary = %q", out["summary"])
	}
}

func TestDecodeLooseCommentsAndTrailingCommas(t *testing.T) {
	text := `{
		// model added a comment here
		"key_points": ["a", "b",],
	}`
	var out map[string][]string
	if err := DecodeLoose(text, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out["key_points"]) != 2 {
		t.Fatalf("key_points = %v", out["key_points"])
	}
}

func TestDecodeLooseRawNewlineInString(t *testing.T) {
	text := "{\"summary\": \"first line\nsecond line\"}"
	var out map[string]string
	if err := DecodeLoose(text, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["summary"] != "first line\nsecond line" {
		t.Fatalf("summary = %q", out["summary"])
	}
}

func TestDecodeLooseGarbage(t *testing.T) {
	var out map[string]any
	if err := DecodeLoose("I could not produce any structured output.", &out); err == nil {
		t.Fatal("expected error for non-JSON text")
	}
}
