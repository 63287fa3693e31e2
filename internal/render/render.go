// Package render prints query results as bordered console tables. The exact
// formatting is not a compatibility contract.
package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vectral/post-analytics/internal/query"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Table renders a single query result as a bordered table.
func Table(result *query.Result) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(result.Columns...).
		Rows(result.Rows...)

	return t.Render()
}

// Write prints every result, preceded by its title, to w.
func Write(w io.Writer, results []query.Result) error {
	for i := range results {
		result := &results[i]
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", titleStyle.Render(result.Title), Table(result)); err != nil {
			return fmt.Errorf("failed to render %q: %w", result.Name, err)
		}
	}
	return nil
}
