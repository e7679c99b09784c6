package segment

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func kinds(segments []Segment) []Kind {
	out := make([]Kind, len(segments))
	for i, s := range segments {
		out[i] = s.Kind
	}
	return out
}

func TestParseProseOnly(t *testing.T) {
	segments := Parse("Here is my analysis of the data.", nil)

	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
	if segments[0].Kind != KindText {
		t.Errorf("kind = %v, want text", segments[0].Kind)
	}
	if segments[0].Content != "Here is my analysis of the data." {
		t.Errorf("content = %q", segments[0].Content)
	}
}

func TestParseCodeWithResult(t *testing.T) {
	text := "Let me count the rows.\n" +
		"```execute\ndf.count()\n```\n" +
		"Code Execution Result:\n```json\n{\"rows\": 42}\n```\n" +
		"The table has 42 rows."

	segments := Parse(text, nil)

	want := []Kind{KindText, KindResult, KindText}
	if diff := cmp.Diff(want, kinds(segments)); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	// The executed code is hidden from the flow but reachable by index.
	if segments[1].Index != 0 {
		t.Errorf("result index = %d, want 0", segments[1].Index)
	}
	blocks := CodeBlocks(text)
	if len(blocks) != 1 || blocks[0] != "df.count()" {
		t.Errorf("CodeBlocks() = %v", blocks)
	}
}

func TestParseResultLabelVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain", "Code Execution Result\n```json\n{\"ok\":true}\n```"},
		{"bold_with_colon", "**Code Execution Result**:\n```json\n{\"ok\":true}\n```"},
		{"timing_suffix", "Code Execution Result (0.3s):\n```json\n{\"ok\":true}\n```"},
		{"unannotated_fence", "Code Execution Result:\n```\n{\"ok\":true}\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := Parse("```execute\nrun()\n```\n"+tt.text, nil)
			var found bool
			for _, s := range segments {
				if s.Kind == KindResult {
					found = true
				}
			}
			if !found {
				t.Errorf("no result segment parsed from %q", tt.text)
			}
		})
	}
}

func TestParseOrdinalPairing(t *testing.T) {
	text := "First step.\n" +
		"```execute\nstep_one()\n```\n" +
		"Some narration between blocks.\n" +
		"```execute\nstep_two()\n```\n" +
		"Code Execution Result:\n```json\n{\"step\": 1}\n```\n" +
		"Code Execution Result:\n```json\n{\"step\": 2}\n```\n"

	segments := Parse(text, nil)

	var results []Segment
	for _, s := range segments {
		if s.Kind == KindResult {
			results = append(results, s)
		}
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	// The Kth marker pairs with the Kth block regardless of prose between.
	if results[0].Index != 0 || results[1].Index != 1 {
		t.Errorf("result indexes = %d, %d, want 0, 1", results[0].Index, results[1].Index)
	}
}

func TestParseFailedExecutionRendersAtCodePosition(t *testing.T) {
	text := "Trying the join.\n" +
		"```execute\ndf.join(other)\n```\n" +
		"**Code Execution Error**:\n```\nKeyError: 'id'\n```\n" +
		"I will fix the key."

	segments := Parse(text, nil)

	want := []Kind{KindText, KindFailed, KindText}
	if diff := cmp.Diff(want, kinds(segments)); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	failed := segments[1]
	if failed.Content != "df.join(other)" {
		t.Errorf("failed content = %q, want the code", failed.Content)
	}
	if failed.Error != "KeyError: 'id'" {
		t.Errorf("failed error = %q", failed.Error)
	}
}

func TestParseBareErrorLine(t *testing.T) {
	text := "```execute\nrun()\n```\nExecution error: runtime blew up\n"

	segments := Parse(text, nil)

	if len(segments) != 1 || segments[0].Kind != KindFailed {
		t.Fatalf("segments = %v, want one failed segment", kinds(segments))
	}
	if segments[0].Error != "runtime blew up" {
		t.Errorf("error = %q", segments[0].Error)
	}
}

func TestParseMalformedResultJSONSkipsMarker(t *testing.T) {
	text := "```execute\nrun()\n```\n" +
		"Code Execution Result:\n```json\n{not json at all\n```\n"

	segments := Parse(text, nil)

	for _, s := range segments {
		if s.Kind == KindResult {
			t.Fatal("malformed result JSON must not produce a result segment")
		}
	}
	// With the marker skipped the code block has no outcome and stays code.
	if segments[0].Kind != KindCode {
		t.Errorf("first kind = %v, want code", segments[0].Kind)
	}
}

func TestParseUnclosedTrailingFenceIsCode(t *testing.T) {
	text := "Computing now.\n```execute\ndf.groupby('team')"

	segments := Parse(text, nil)

	want := []Kind{KindText, KindCode}
	if diff := cmp.Diff(want, kinds(segments)); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if segments[1].Content != "df.groupby('team')" {
		t.Errorf("code content = %q", segments[1].Content)
	}
}

func TestParseMarkerInsideCodeIsCode(t *testing.T) {
	text := "```execute\nprint(\"Execution error: fake\")\n```\n"

	segments := Parse(text, nil)

	if len(segments) != 1 || segments[0].Kind != KindCode {
		t.Fatalf("segments = %v, want one code segment", kinds(segments))
	}
}

func TestParseIdempotent(t *testing.T) {
	text := "Intro.\n" +
		"```execute\nplot()\n```\n" +
		"Code Execution Result:\n```json\n{\"chart_data\": {\"series\": [{\"name\": \"a\", \"data\": [1]}]}}\n```\n" +
		"Execution error: later failure\n" +
		"Outro."

	first := Parse(text, nil)
	for i := 0; i < 5; i++ {
		again := Parse(text, nil)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("parse not deterministic on run %d (-first +again):\n%s", i, diff)
		}
	}
}

func TestParsePrefixStability(t *testing.T) {
	full := "Step one.\n" +
		"```execute\nload()\n```\n" +
		"Code Execution Result:\n```json\n{\"loaded\": true}\n```\n" +
		"Step two.\n" +
		"```execute\ntransform()\n```\n"

	// Re-parsing each growing prefix must never panic and the final parse
	// must match parsing the full text directly.
	var last []Segment
	for i := 0; i <= len(full); i++ {
		last = Parse(full[:i], nil)
	}
	if diff := cmp.Diff(Parse(full, nil), last); diff != "" {
		t.Errorf("incremental final parse diverges (-direct +incremental):\n%s", diff)
	}
}

func TestParseSkippedRunSharesGroupKey(t *testing.T) {
	text := "```execute\na()\n```\n" +
		"Execution error: Execution skipped by user\n" +
		"```execute\nb()\n```\n" +
		"Execution error: Skipped: prior step failed\n"

	segments := Parse(text, nil)

	var skipped []Segment
	for _, s := range segments {
		if s.Kind == KindSkipped {
			skipped = append(skipped, s)
		}
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped = %d, want 2", len(skipped))
	}
	if skipped[0].GroupKey != skipped[1].GroupKey {
		t.Errorf("group keys = %d, %d, want shared", skipped[0].GroupKey, skipped[1].GroupKey)
	}
	if skipped[0].Index == skipped[1].Index {
		t.Error("indexes must stay distinct inside a grouped run")
	}
}

func TestParseFallbackResults(t *testing.T) {
	text := "```execute\nfirst()\n```\nprose\n```execute\nsecond()\n```\n"
	fallback := []json.RawMessage{
		json.RawMessage(`{"n": 1}`),
		json.RawMessage(`{"n": 2}`),
	}

	segments := Parse(text, fallback)

	var results []Segment
	for _, s := range segments {
		if s.Kind == KindResult {
			results = append(results, s)
		}
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 synthetic results", len(results))
	}

	// Fallback payloads are ignored once any in-band marker exists.
	withMarker := text + "Code Execution Result:\n```json\n{\"n\": 9}\n```\n"
	segments = Parse(withMarker, fallback)
	count := 0
	for _, s := range segments {
		if s.Kind == KindResult {
			count++
		}
	}
	if count != 1 {
		t.Errorf("results with in-band marker = %d, want 1", count)
	}
}

func TestParseExtraOutcomeStillEmitted(t *testing.T) {
	text := "Code Execution Result:\n```json\n{\"orphan\": true}\n```\n"

	segments := Parse(text, nil)

	if len(segments) != 1 || segments[0].Kind != KindResult {
		t.Fatalf("segments = %v, want one orphan result", kinds(segments))
	}
}

func TestParseChartPayloadNormalized(t *testing.T) {
	text := "```execute\nplot()\n```\n" +
		"Code Execution Result:\n```json\n" +
		`{"chart_data": {"$$typeof": "react.element", "series": [{"name": "goals", "type": "bar", "data": [{"label": "Arsenal", "count": 3}]}], "meta": {"stacked": true, "legend": {"$$typeof": "react.element"}}}}` +
		"\n```\n"

	segments := Parse(text, nil)

	var payload string
	for _, seg := range segments {
		if seg.Kind == KindChart {
			payload = string(seg.JSON)
		}
	}
	if payload == "" {
		t.Fatal("no chart segment emitted")
	}
	if strings.Contains(payload, "$$typeof") {
		t.Errorf("framework element marker survived normalization: %s", payload)
	}
	if !strings.Contains(payload, `"series"`) || !strings.Contains(payload, `"stacked"`) {
		t.Errorf("normalized spec lost chart data: %s", payload)
	}
}

func TestParseUnrenderableChartPayloadDropped(t *testing.T) {
	text := "```execute\nplot()\n```\n" +
		"Code Execution Result:\n```json\n{\"chart_data\": {\"series\": []}}\n```\n"

	segments := Parse(text, nil)

	for _, seg := range segments {
		if seg.Kind == KindChart {
			t.Fatalf("empty chart payload still produced a chart segment: %s", seg.JSON)
		}
	}
	if got := kinds(segments); len(got) == 0 || got[len(got)-1] != KindResult {
		t.Errorf("segments = %v, want the result segment kept", got)
	}
}

func TestParseChartDetection(t *testing.T) {
	text := "```execute\nplot()\n```\n" +
		"Code Execution Result:\n```json\n{\"summary\": \"done\", \"chart_data\": {\"series\": [{\"name\": \"s\", \"data\": [1, 2]}]}}\n```\n"

	segments := Parse(text, nil)

	var chart *Segment
	for i := range segments {
		if segments[i].Kind == KindChart {
			chart = &segments[i]
		}
	}
	if chart == nil {
		t.Fatal("no chart segment emitted")
	}
	if len(chart.JSON) == 0 {
		t.Error("chart segment carries no payload")
	}
}
