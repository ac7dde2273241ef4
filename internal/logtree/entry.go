// Package logtree models a hierarchical log entry and renders it as indented,
// line-oriented text. Building an Entry is separate from printing it, so
// reports can be asserted on as values without capturing output.
package logtree

// Status selects the marker printed in front of an entry header.
type Status int

// Supported entry statuses.
const (
	StatusNeutral Status = iota
	StatusSuccess
	StatusFail
	StatusWaiting
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFail:
		return "fail"
	case StatusWaiting:
		return "waiting"
	default:
		return "neutral"
	}
}

// Field is one "Label: value" line.
type Field struct {
	Label string
	Value string
}

// Entry is a renderable tree node. It is a plain value; callers build it,
// hand it to a Renderer and drop it.
type Entry struct {
	Header   string
	Status   Status
	Fields   []Field
	Children []Entry
}

// Field returns the value of the first field with the given label.
func (e Entry) Field(label string) (string, bool) {
	for _, f := range e.Fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}
