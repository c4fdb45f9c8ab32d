package workflow

import "time"

// Event is a progress notification emitted after each sub-step of a run.
type Event struct {
	RunID    string    `json:"run_id"`
	Node     Node      `json:"node"`
	Percent  int       `json:"percent"`
	Actor    string    `json:"actor,omitempty"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
	Snapshot State     `json:"snapshot"`
}

// Final reports whether e is the terminal event of its run.
func (e Event) Final() bool { return e.Node == NodeEnd }

// progressFor maps a position in the loop onto 0..100. The summarize/review cycles
// share 10..90 evenly; titling sits at 90 and END at 100.
func progressFor(node Node, revision, maxRevisions int) int {
	if maxRevisions <= 0 {
		maxRevisions = DefaultMaxRevisions
	}
	span := 80 / maxRevisions
	base := 10 + (revision-1)*span
	switch node {
	case NodeStart:
		return 0
	case NodeSummarize:
		return base
	case NodeReview:
		return base + span/2
	case NodeTitle:
		return 90
	case NodeEnd:
		return 100
	}
	return 0
}
