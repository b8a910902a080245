package journal

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/rustyeddy/tradebook/ledger"
)

var entryCSVHeader = []string{
	"id", "occurred_at", "type", "status", "currency", "amount", "signed_amount",
	"symbol", "comment", "tax_amount", "tax_rate", "tax_country", "tax_withheld",
}

// WriteEntriesCSV writes entries with a header row. signed_amount is the
// entry's contribution to its currency balance.
func WriteEntriesCSV(w io.Writer, entries []*ledger.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(entryCSVHeader); err != nil {
		return errors.Wrap(err, "journal: write csv header")
	}

	for _, e := range entries {
		rec := []string{
			e.ID,
			e.OccurredAt.UTC().Format(time.RFC3339),
			string(e.Type),
			string(e.Status),
			e.Currency,
			e.Amount.String(),
			e.Contribution().String(),
			e.Symbol,
			e.Comment,
			"", "", "", "",
		}
		if t := e.Tax; t != nil {
			rec[9] = t.Amount.String()
			rec[10] = t.Rate.String()
			rec[11] = t.Country
			rec[12] = "false"
			if t.Withheld {
				rec[12] = "true"
			}
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "journal: write csv row %s", e.ID)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "journal: flush csv")
}
