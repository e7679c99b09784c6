package segment

import "encoding/json"

// Kind discriminates the segment variants of a parsed response.
type Kind string

const (
	// KindText is prose outside any marker.
	KindText Kind = "text"
	// KindCode is a code block with no outcome yet (still executing).
	KindCode Kind = "code"
	// KindResult is a successful execution result; its code block is hidden
	// and reachable only through the code index.
	KindResult Kind = "result"
	// KindFailed is a code block paired with an execution error.
	KindFailed Kind = "failed"
	// KindSkipped is a code block whose paired error marks it as skipped.
	KindSkipped Kind = "skipped"
	// KindChart is the canonical chart spec normalized from a payload found
	// inside a result's JSON body.
	KindChart Kind = "chart"
)

// Segment is one typed, ordered piece of a parsed response. Index links a
// code block to its outcome by execution order, not textual adjacency:
// the Nth code block in the text pairs with the Nth outcome marker.
type Segment struct {
	Kind    Kind            `json:"kind"`
	Content string          `json:"content,omitempty"`
	Index   int             `json:"index"`
	JSON    json.RawMessage `json:"json,omitempty"`
	Error   string          `json:"error,omitempty"`
	// GroupKey coalesces consecutive skipped segments into one visual
	// group: every member carries the first member's index. All segments
	// are retained in the data; only presentation groups them.
	GroupKey int `json:"group_key"`
}
