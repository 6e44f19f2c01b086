// Package render pretty-prints the results of a synthesis run: a summary
// table of constructed references and a tree view of the generated blocks.
package render

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/vk/stackform/internal/refs"
)

// OutputsTable writes a table of constructed references and their symbolic
// outputs to w.
func OutputsTable(w io.Writer, references []*refs.ResourceReference) error {
	table := tablewriter.NewTable(w)
	table.Header("Address", "Kind", "Outputs")

	rows := make([][]any, 0, len(references))
	for _, ref := range references {
		kind := "resource"
		if ref.IsDataSource() {
			kind = "data"
		}
		rows = append(rows, []any{ref.Addr(), kind, strings.Join(ref.OutputNames(), ", ")})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
