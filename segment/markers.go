package segment

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// The marker families recognized in streamed response text. The label's
// bold markers, trailing colon, and timing suffix are all optional so both
// current and older serialized forms parse.
var (
	codeFenceRe = regexp.MustCompile("(?s)```execute[ \t]*\n(.*?)```")
	codeOpenRe  = regexp.MustCompile("```execute[ \t]*\n")

	resultRe = regexp.MustCompile("(?s)(?:\\*\\*)?Code Execution Result(?:\\*\\*)?(?:[ \t]*\\([^)\n]*\\))?:?(?:[ \t]*\\([^)\n]*\\))?[ \t]*\n```(?:json)?[ \t]*\n(.*?)```")

	// Two accepted error shapes: a labeled fenced block and a bare line.
	errorBlockRe = regexp.MustCompile("(?s)(?:\\*\\*)?Code Execution Error(?:\\*\\*)?:?[ \t]*\n```[a-z]*[ \t]*\n(.*?)```")
	errorLineRe  = regexp.MustCompile(`(?m)^Execution error: (.+)$`)
)

// skippedPrefixes classify an execution error as a deliberate skip.
var skippedPrefixes = []string{"Execution skipped", "Skipped:"}

type span struct {
	start, end int
}

type codeBlock struct {
	span
	content string
}

type outcome struct {
	span
	failed  bool
	content string
	json    json.RawMessage
	// synthetic outcomes come from the out-of-band fallback payload and
	// occupy a zero-width span right after their code block.
	synthetic bool
}

// findCodeBlocks returns the fenced execute blocks in order of appearance.
// An unclosed trailing fence is treated as a block running to the end of
// the text, so a still-streaming code block already shows as code.
func findCodeBlocks(text string) []codeBlock {
	var blocks []codeBlock
	matches := codeFenceRe.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		blocks = append(blocks, codeBlock{
			span:    span{start: m[0], end: m[1]},
			content: strings.TrimRight(text[m[2]:m[3]], "\n"),
		})
	}

	opens := codeOpenRe.FindAllStringIndex(text, -1)
	for _, open := range opens {
		covered := false
		for _, b := range blocks {
			if open[0] >= b.start && open[0] < b.end {
				covered = true
				break
			}
		}
		if !covered {
			blocks = append(blocks, codeBlock{
				span:    span{start: open[0], end: len(text)},
				content: strings.TrimRight(text[open[1]:], "\n"),
			})
		}
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].start < blocks[j].start })
	return blocks
}

// findOutcomes collects result and error markers of either shape into a
// single chronological list. A result marker whose JSON body does not parse
// is skipped entirely: one bad block never blanks the rest of the message.
func findOutcomes(text string) []outcome {
	var outcomes []outcome

	for _, m := range resultRe.FindAllStringSubmatchIndex(text, -1) {
		body := strings.TrimSpace(text[m[2]:m[3]])
		if !json.Valid([]byte(body)) {
			continue
		}
		outcomes = append(outcomes, outcome{
			span:    span{start: m[0], end: m[1]},
			content: body,
			json:    json.RawMessage(body),
		})
	}
	for _, m := range errorBlockRe.FindAllStringSubmatchIndex(text, -1) {
		outcomes = append(outcomes, outcome{
			span:    span{start: m[0], end: m[1]},
			failed:  true,
			content: strings.TrimSpace(text[m[2]:m[3]]),
		})
	}
	for _, m := range errorLineRe.FindAllStringSubmatchIndex(text, -1) {
		outcomes = append(outcomes, outcome{
			span:    span{start: m[0], end: m[1]},
			failed:  true,
			content: strings.TrimSpace(text[m[2]:m[3]]),
		})
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].start < outcomes[j].start })

	// Drop markers overlapping an earlier accepted marker (a bare error
	// line inside a labeled error block matches twice).
	var kept []outcome
	lastEnd := -1
	for _, o := range outcomes {
		if o.start < lastEnd {
			continue
		}
		kept = append(kept, o)
		lastEnd = o.end
	}
	return kept
}

func isSkipped(errText string) bool {
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(errText, prefix) {
			return true
		}
	}
	return false
}
