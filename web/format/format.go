package format

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"datachat/segment"

	"github.com/gomarkdown/markdown"
)

// RenderMarkdown converts prose to HTML for storage. Streaming never goes
// through here; only the persisted rendered form does.
func RenderMarkdown(text string) string {
	text = normalizeMarkdownLists(text)
	return string(markdown.ToHTML([]byte(text), nil, nil))
}

// RenderSegments converts a parsed segment list to the HTML stored with an
// assistant message. Skipped runs render inside one group wrapper keyed by
// the run's first index.
func RenderSegments(segments []segment.Segment) string {
	var b strings.Builder
	openGroup := -1
	closeGroup := func() {
		if openGroup >= 0 {
			b.WriteString("</div>\n")
			openGroup = -1
		}
	}

	for _, seg := range segments {
		if seg.Kind != segment.KindSkipped {
			closeGroup()
		}
		switch seg.Kind {
		case segment.KindText:
			b.WriteString(RenderMarkdown(seg.Content))
		case segment.KindCode:
			fmt.Fprintf(&b, "<pre class=\"code-running\" data-code-index=\"%d\"><code>%s</code></pre>\n",
				seg.Index, html.EscapeString(seg.Content))
		case segment.KindResult:
			fmt.Fprintf(&b, "<pre class=\"execution-result\" data-code-index=\"%d\"><code>%s</code></pre>\n",
				seg.Index, html.EscapeString(seg.Content))
		case segment.KindFailed:
			fmt.Fprintf(&b, "<pre class=\"execution-failed\" data-code-index=\"%d\"><code>%s</code></pre>\n",
				seg.Index, html.EscapeString(seg.Error))
		case segment.KindSkipped:
			if openGroup != seg.GroupKey {
				closeGroup()
				fmt.Fprintf(&b, "<div class=\"execution-skipped-group\" data-group-key=\"%d\">\n", seg.GroupKey)
				openGroup = seg.GroupKey
			}
			fmt.Fprintf(&b, "<pre class=\"execution-skipped\" data-code-index=\"%d\"><code>%s</code></pre>\n",
				seg.Index, html.EscapeString(seg.Error))
		case segment.KindChart:
			fmt.Fprintf(&b, "<div class=\"chart-embed\" data-code-index=\"%d\" data-chart-spec=\"%s\"></div>\n",
				seg.Index, html.EscapeString(string(seg.JSON)))
		}
	}
	closeGroup()
	return b.String()
}

var listItemRe = regexp.MustCompile(`(?m)^([^\n\-\*].*)\n(- |\* |\d+\. )`)

// normalizeMarkdownLists inserts the blank line markdown requires before a
// list when the model outputs "**Text:**\n- Item" without one.
func normalizeMarkdownLists(text string) string {
	return listItemRe.ReplaceAllString(text, "$1\n\n$2")
}
