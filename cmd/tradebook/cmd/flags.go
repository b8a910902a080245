package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/config"
)

func envUser() string { return os.Getenv(config.EnvPrefix + "_USER") }

// parseDecimal reads a flag value; empty reads as zero.
func parseDecimal(name, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %q is not a number", name, v)
	}
	return d, nil
}

// changedDecimal returns nil unless the flag was given.
func changedDecimal(cmd *cobra.Command, name, v string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	d, err := parseDecimal(name, v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func changedString(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

// parseTime accepts RFC3339 or a bare date in local time. Empty reads as
// the zero time.
func parseTime(name, v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %q is neither RFC3339 nor YYYY-MM-DD", name, v)
	}
	return t, nil
}

func parseTimePtr(name, v string) (*time.Time, error) {
	t, err := parseTime(name, v)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

// dayEnd moves a bare date to the last instant of that day so --to is
// inclusive of the whole day.
func dayEnd(v string, t *time.Time) *time.Time {
	if t == nil || strings.Contains(v, "T") {
		return t
	}
	end := t.Add(24*time.Hour - time.Nanosecond)
	return &end
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func typed[T ~string](in []string) []T {
	out := make([]T, 0, len(in))
	for _, s := range in {
		out = append(out, T(s))
	}
	return out
}
