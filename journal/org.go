package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/position"
)

// FormatPositionOrg renders a position as an Org-mode block for a trading
// journal. Facts go in the PROPERTIES drawer; the headings below it are left
// for notes.
func FormatPositionOrg(p *position.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Position: %s %s (%s)\n", p.Symbol, p.Side, shortID(p.ID))
	b.WriteString(":PROPERTIES:\n")
	prop := func(k, v string) { fmt.Fprintf(&b, ":%s: %s\n", k, v) }

	prop("POSITION_ID", p.ID)
	prop("SYMBOL", p.Symbol)
	prop("SIDE", string(p.Side))
	prop("STATUS", string(p.Status))
	prop("CURRENCY", p.Currency)
	prop("VOLUME", p.Volume.String())
	prop("OPEN_TIME", p.OpenTime.UTC().Format(time.RFC3339))
	prop("OPEN_PRICE", p.OpenPrice.String())
	if p.CloseTime != nil {
		prop("CLOSE_TIME", p.CloseTime.UTC().Format(time.RFC3339))
	}
	if p.ClosePrice != nil {
		prop("CLOSE_PRICE", p.ClosePrice.String())
	}
	prop("CURRENT_PRICE", p.CurrentPrice.String())
	prop("COMMISSION", money(p.Commission))
	prop("SWAP", money(p.Swap))
	prop("TAXES", money(p.Taxes))
	prop("GROSS_PL", money(p.GrossPL))
	prop("NET_PL", money(p.NetPL))
	if p.StopLoss != nil {
		prop("STOP_LOSS", p.StopLoss.String())
	}
	if p.TakeProfit != nil {
		prop("TAKE_PROFIT", p.TakeProfit.String())
	}
	if p.SourceOrderID != "" {
		prop("SOURCE_ORDER", p.SourceOrderID)
	}
	if p.PortfolioID != "" {
		prop("PORTFOLIO", p.PortfolioID)
	}
	b.WriteString(":END:\n\n")

	b.WriteString("*** Thesis\n")
	if c := strings.TrimSpace(p.Comment); c != "" {
		for _, line := range strings.Split(c, "\n") {
			fmt.Fprintf(&b, "- %s\n", line)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("- \n\n")
	}
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatPositionsOrg renders several positions separated by blank lines.
func FormatPositionsOrg(list []*position.Position) string {
	var b strings.Builder
	for i, p := range list {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatPositionOrg(p))
	}
	return b.String()
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
