package recovery

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseValidJSONUntouched(t *testing.T) {
	raw := `{"title":"The Hollow Road","step":3,"tags":["fire","fog"],"nested":{"ok":true}}`

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var want map[string]any
	if err := json.Unmarshal([]byte(raw), &want); err != nil {
		t.Fatalf("control unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected recovery of valid JSON to match a direct parse, got %v", got)
	}
}

func TestParseFencedJSON(t *testing.T) {
	raw := "Here is the event you asked for:\n```json\n{\"title\": \"Ambush\", \"eventType\": \"battle\"}\n```\nLet me know if you need changes."

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["title"] != "Ambush" {
		t.Errorf("expected title Ambush, got %v", got["title"])
	}
	if got["eventType"] != "battle" {
		t.Errorf("expected eventType battle, got %v", got["eventType"])
	}
}

func TestParseProseWrappedJSON(t *testing.T) {
	raw := `Sure! {"label": "Sneak past", "risk": "moderate"} Hope that helps.`

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["label"] != "Sneak past" {
		t.Errorf("expected label Sneak past, got %v", got["label"])
	}
}

func TestParseTruncatedMidString(t *testing.T) {
	// Cut off mid-value and missing its closing brace.
	got, err := Parse(`{"a":1,"b":"hello`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != float64(1) {
		t.Errorf("expected a=1, got %v", got["a"])
	}
	if got["b"] != "hello" {
		t.Errorf("expected b=hello, got %v", got["b"])
	}
}

func TestParseRawControlCharsInString(t *testing.T) {
	raw := "{\"narration\": \"The cave mouth yawns.\nInside, something breathes.\"}"

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, ok := got["narration"].(string)
	if !ok {
		t.Fatalf("expected narration string, got %T", got["narration"])
	}
	if !strings.Contains(text, "\n") {
		t.Error("expected the raw newline to survive as a newline in the decoded value")
	}
	if !strings.Contains(text, "something breathes") {
		t.Errorf("expected full narration text, got %q", text)
	}
}

func TestParseTrailingGarbage(t *testing.T) {
	got, err := Parse(`{"score": 42} and that concludes the round }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["score"] != float64(42) {
		t.Errorf("expected score 42, got %v", got["score"])
	}
}

func TestParseUnclosedNesting(t *testing.T) {
	got, err := Parse(`{"quest": {"title": "Ashfall", "steps": [1, 2`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	quest, ok := got["quest"].(map[string]any)
	if !ok {
		t.Fatalf("expected quest object, got %T", got["quest"])
	}
	if quest["title"] != "Ashfall" {
		t.Errorf("expected title Ashfall, got %v", quest["title"])
	}
	steps, ok := quest["steps"].([]any)
	if !ok || len(steps) != 2 {
		t.Errorf("expected steps [1 2], got %v", quest["steps"])
	}
}

func TestParseUnrecoverable(t *testing.T) {
	long := strings.Repeat("nothing structured here ", 20)

	for _, raw := range []string{"", "no braces at all", long} {
		_, err := Parse(raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected *ParseError, got %T", err)
		}
		if perr.OriginalLength != len(raw) {
			t.Errorf("expected original length %d, got %d", len(raw), perr.OriginalLength)
		}
		if len(perr.Prefix) > errorPrefixLen {
			t.Errorf("expected prefix capped at %d bytes, got %d", errorPrefixLen, len(perr.Prefix))
		}
	}
}

func TestParseAs(t *testing.T) {
	type draft struct {
		Title     string   `json:"title"`
		EventType string   `json:"eventType"`
		Tags      []string `json:"tags"`
	}

	t.Run("valid", func(t *testing.T) {
		got, err := ParseAs[draft]("```json\n{\"title\":\"Riverside Duel\",\"eventType\":\"battle\",\"tags\":[\"water\"]}\n```")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Title != "Riverside Duel" || got.EventType != "battle" {
			t.Errorf("unexpected draft %+v", got)
		}
	})

	t.Run("repaired", func(t *testing.T) {
		got, err := ParseAs[draft](`{"title":"Night Market","eventType":"encounter`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.EventType != "encounter" {
			t.Errorf("expected eventType encounter, got %q", got.EventType)
		}
	})

	t.Run("unrecoverable", func(t *testing.T) {
		_, err := ParseAs[draft]("just words")
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected *ParseError, got %v", err)
		}
	})
}
