package segment

import (
	"encoding/json"
	"sort"
	"strings"

	"datachat/chart"
)

// Parse carves the full response text seen so far into ordered segments.
// It is a pure function of (fullText, fallbackResults): every streamed
// update re-derives the whole list from scratch, never patching a previous
// one, so out-of-order chunk delivery cannot leave the segments
// inconsistent with the final text.
//
// The Kth code block pairs with the Kth result-or-error marker by ordinal
// position regardless of intervening prose. Execution is sequential, so
// ordinal pairing is the robust contract; it does assume the model never
// drops or reorders outcome markers.
//
// fallbackResults covers responses whose serialized markers were lost: when
// the text holds no outcome markers at all, the payloads are consumed in
// order as synthetic results placed right after each code block.
func Parse(fullText string, fallbackResults []json.RawMessage) []Segment {
	codes := findCodeBlocks(fullText)
	outcomes := findOutcomes(fullText)

	// A marker shape matched inside a code block is code, not an outcome.
	outcomes = dropInsideCode(outcomes, codes)

	if len(outcomes) == 0 && len(fallbackResults) > 0 {
		for k, code := range codes {
			if k >= len(fallbackResults) {
				break
			}
			payload := fallbackResults[k]
			if !json.Valid(payload) {
				continue
			}
			outcomes = append(outcomes, outcome{
				span:      span{start: code.end, end: code.end},
				content:   string(payload),
				json:      payload,
				synthetic: true,
			})
		}
	}

	type emission struct {
		span
		segments []Segment
	}
	var emissions []emission

	for k, code := range codes {
		if k >= len(outcomes) {
			emissions = append(emissions, emission{
				span:     code.span,
				segments: []Segment{{Kind: KindCode, Content: code.content, Index: k, GroupKey: k}},
			})
			continue
		}
		o := outcomes[k]
		if o.failed {
			kind := KindFailed
			if isSkipped(o.content) {
				kind = KindSkipped
			}
			// The failure renders at the code block's position; the error
			// marker's span is consumed without output.
			emissions = append(emissions,
				emission{span: code.span, segments: []Segment{{
					Kind:     kind,
					Content:  code.content,
					Index:    k,
					Error:    o.content,
					GroupKey: k,
				}}},
				emission{span: o.span},
			)
			continue
		}
		// Successful result: the code block is omitted from the stream
		// (reachable via its index) and the result renders at the marker's
		// span, which is always later in the text.
		segs := []Segment{{Kind: KindResult, Content: o.content, Index: k, JSON: o.json, GroupKey: k}}
		if payload, ok := FindChartPayload(o.json); ok {
			if spec, ok := normalizedChartJSON(payload); ok {
				segs = append(segs, Segment{Kind: KindChart, Index: k, JSON: spec, GroupKey: k})
			}
		}
		emissions = append(emissions,
			emission{span: code.span},
			emission{span: o.span, segments: segs},
		)
	}

	// Outcome markers beyond the last code block have no pairing; keep
	// their content visible rather than dropping data.
	for k := len(codes); k < len(outcomes); k++ {
		o := outcomes[k]
		if o.failed {
			kind := KindFailed
			if isSkipped(o.content) {
				kind = KindSkipped
			}
			emissions = append(emissions, emission{span: o.span, segments: []Segment{{
				Kind: kind, Index: k, Error: o.content, GroupKey: k,
			}}})
			continue
		}
		segs := []Segment{{Kind: KindResult, Content: o.content, Index: k, JSON: o.json, GroupKey: k}}
		if payload, ok := FindChartPayload(o.json); ok {
			if spec, ok := normalizedChartJSON(payload); ok {
				segs = append(segs, Segment{Kind: KindChart, Index: k, JSON: spec, GroupKey: k})
			}
		}
		emissions = append(emissions, emission{span: o.span, segments: segs})
	}

	sort.SliceStable(emissions, func(i, j int) bool { return emissions[i].start < emissions[j].start })

	var segments []Segment
	cursor := 0
	appendText := func(raw string) {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			segments = append(segments, Segment{Kind: KindText, Content: trimmed, Index: -1, GroupKey: -1})
		}
	}
	for _, e := range emissions {
		if e.start > cursor {
			appendText(fullText[cursor:e.start])
		}
		segments = append(segments, e.segments...)
		if e.end > cursor {
			cursor = e.end
		}
	}
	if cursor < len(fullText) {
		appendText(fullText[cursor:])
	}

	return groupSkipped(segments)
}

// normalizedChartJSON runs a detected chart payload through chart.Normalize
// so only the canonical, sanitized spec ever leaves the parser. Payloads the
// normalizer rejects produce no chart segment at all.
func normalizedChartJSON(raw json.RawMessage) (json.RawMessage, bool) {
	spec := chart.Normalize(raw)
	if spec == nil {
		return nil, false
	}
	out, err := json.Marshal(spec)
	if err != nil {
		return nil, false
	}
	return out, true
}

// CodeBlocks returns the content of every execute block in order, so a
// hidden executed block stays reachable by its index.
func CodeBlocks(fullText string) []string {
	codes := findCodeBlocks(fullText)
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = c.content
	}
	return out
}

func dropInsideCode(outcomes []outcome, codes []codeBlock) []outcome {
	if len(codes) == 0 {
		return outcomes
	}
	var kept []outcome
	for _, o := range outcomes {
		inside := false
		for _, c := range codes {
			if o.start >= c.start && o.start < c.end {
				inside = true
				break
			}
		}
		if !inside {
			kept = append(kept, o)
		}
	}
	return kept
}

// groupSkipped rewrites GroupKey so a run of consecutive skipped segments
// shares the first member's index.
func groupSkipped(segments []Segment) []Segment {
	runStart := -1
	for i := range segments {
		if segments[i].Kind == KindSkipped {
			if runStart == -1 {
				runStart = segments[i].Index
			}
			segments[i].GroupKey = runStart
		} else {
			runStart = -1
		}
	}
	return segments
}
