package reporter

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/JakeFAU/pipeline-reporter/internal/logtree"
	"github.com/JakeFAU/pipeline-reporter/internal/textfmt"
)

// BuildSnapshot describes a stream and its destinations as a log entry. It
// is a pure function of its input.
func BuildSnapshot(jobID int64, s StreamSnapshot) logtree.Entry {
	var header strings.Builder
	fmt.Fprintf(&header, "Job #%d. Stream #%d ", jobID, s.ID)
	if len(s.Info) > 0 {
		info := lo.Map(s.Info, func(v any, _ int) string { return textfmt.Inline(v) })
		fmt.Fprintf(&header, "(%s) ", strings.Join(info, ", "))
	}

	status := logtree.StatusWaiting
	switch {
	case s.Finished:
		status = logtree.StatusSuccess
		header.WriteString("processed.")
	case s.Speed > 0:
		fmt.Fprintf(&header, "processing (%d rows/sec)…", int64(math.Round(s.Speed)))
	default:
		header.WriteString("processing…")
	}

	entry := logtree.Entry{
		Header: header.String(),
		Status: status,
		Fields: []logtree.Field{{
			Label: "Rows",
			Value: fmt.Sprintf("%d received (%s).", s.ReceivedRows, textfmt.Bytes(s.BytesReceived)),
		}},
	}

	indexes := lo.Keys(s.Destinations)
	slices.Sort(indexes)
	for _, idx := range indexes {
		entry.Children = append(entry.Children, destinationEntry(idx, s.Destinations[idx]))
	}
	return entry
}

func destinationEntry(idx int, d DestinationCounters) logtree.Entry {
	var fields []logtree.Field
	fields = appendCounts(fields, "Row generation",
		counted(d.RowsGenerated, "generated"),
		counted(d.RowGenerationFails, "failed"),
	)
	fields = appendCounts(fields, "Row transformation",
		counted(d.BatchesTransformed, "transformed"),
		counted(d.BatchTransformFails, "failed"),
	)
	loaded := ""
	if d.BatchesLoaded > 0 {
		loaded = fmt.Sprintf("%d loaded (%s)", d.BatchesLoaded, textfmt.Bytes(d.BytesLoaded))
	}
	fields = appendCounts(fields, "Batch load", loaded, counted(d.BatchLoadFails, "failed"))
	return logtree.Entry{
		Header: fmt.Sprintf("Destination #%d.", idx),
		Fields: fields,
	}
}

func counted(n int64, what string) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d %s", n, what)
}

// appendCounts adds label only when at least one part is non-empty.
func appendCounts(fields []logtree.Field, label string, parts ...string) []logtree.Field {
	parts = lo.Compact(parts)
	if len(parts) == 0 {
		return fields
	}
	return append(fields, logtree.Field{Label: label, Value: strings.Join(parts, ", ")})
}
