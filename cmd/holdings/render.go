package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/trogers1052/holdings-service/internal/presentation"
)

// holdingsMarkdown renders the view state as a markdown document.
func holdingsMarkdown(st presentation.State) string {
	var b strings.Builder

	b.WriteString("# Holdings\n\n")
	if st.ShowError() {
		fmt.Fprintf(&b, "> **%s**\n\n", st.ErrorMessage)
	}

	if len(st.Rows) == 0 {
		b.WriteString("_No holdings_\n\n")
	} else {
		b.WriteString("| Symbol | Net Qty | LTP | P&L |\n")
		b.WriteString("|:--|--:|--:|--:|\n")
		for _, r := range st.Rows {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				r.Symbol,
				strings.TrimPrefix(r.QuantityText, "NET QTY: "),
				strings.TrimPrefix(r.PriceText, "LTP: "),
				r.PnLText,
			)
		}
		b.WriteString("\n")
	}

	if s := st.Summary; s != nil {
		b.WriteString("## Profit & Loss\n\n")
		b.WriteString("| | |\n")
		b.WriteString("|:--|--:|\n")
		fmt.Fprintf(&b, "| Current value | %s |\n", s.CurrentValueText)
		fmt.Fprintf(&b, "| Total investment | %s |\n", s.InvestmentText)
		fmt.Fprintf(&b, "| Total P&L | %s%s |\n", s.TotalPnLText, s.PercentageText)
		fmt.Fprintf(&b, "| Today's P&L | %s |\n", s.TodaysPnLText)
	}

	return b.String()
}

// renderTerminal styles markdown for the terminal, wrapping at width.
func renderTerminal(markdown string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
