// Package reporter renders console summaries of the engine state, printed
// on demand and at shutdown.
package reporter

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

// PositionsTable renders the position list as an aligned console table
// with a total unrealized P&L footer.
func PositionsTable(positions []*domain.Position) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Symbol", "Status", "Side", "Entry", "Current", "Margin", "Lev", "PnL", "PnL %", "Note"})

	var totalPnL float64
	for _, p := range positions {
		entry := "-"
		if p.EntryLocked {
			entry = fmt.Sprintf("%.2f", p.EntryPrice)
		}
		t.AppendRow(table.Row{
			p.Symbol,
			p.Status,
			p.Side,
			entry,
			fmt.Sprintf("%.2f", p.CurrentPrice),
			fmt.Sprintf("%.2f", p.Margin),
			fmt.Sprintf("%dx", p.Leverage),
			fmt.Sprintf("%+.2f", p.UnrealizedPnL),
			fmt.Sprintf("%+.2f%%", p.PnLPercent),
			p.TriggerNote,
		})
		if p.Status == domain.StatusActive {
			totalPnL += p.UnrealizedPnL
		}
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", fmt.Sprintf("%+.2f", totalPnL), "", ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "PnL", Align: text.AlignRight},
		{Name: "PnL %", Align: text.AlignRight},
	})
	return t.Render()
}

// BotsTable renders the configured bots.
func BotsTable(bots []*domain.BotConfig) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Kind", "Symbols", "Timeframe", "Margin", "Lev"})
	for _, b := range bots {
		t.AppendRow(table.Row{
			b.Name,
			b.Kind,
			strings.Join(b.Symbols, ","),
			b.Timeframe,
			fmt.Sprintf("%.2f", b.Margin),
			fmt.Sprintf("%dx", b.Leverage),
		})
	}
	return t.Render()
}
