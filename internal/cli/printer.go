package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/service"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
)

var (
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	headerColor = color.New(color.Bold)
	dimColor    = color.New(color.Faint)
)

var columnColors = map[entity.DealStatus]*color.Color{
	entity.DealLead:        color.New(color.FgWhite, color.Bold),
	entity.DealQualified:   color.New(color.FgCyan, color.Bold),
	entity.DealProposal:    color.New(color.FgBlue, color.Bold),
	entity.DealNegotiating: color.New(color.FgYellow, color.Bold),
	entity.DealSigned:      color.New(color.FgGreen, color.Bold),
}

type printer struct {
	format string
	out    io.Writer
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) printer {
	return printer{format: opts.Format, out: cmd.OutOrStdout()}
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) migrations(applied []string) error {
	if p.format == FormatJSON {
		return p.json(map[string]any{"applied": applied})
	}
	for _, name := range applied {
		fmt.Fprintf(p.out, "%s %s\n", okColor.Sprint("applied"), name)
	}
	fmt.Fprintf(p.out, "%d migration(s) applied\n", len(applied))
	return nil
}

func (p printer) reconciled(provisioned int) error {
	if p.format == FormatJSON {
		return p.json(map[string]int{"provisioned": provisioned})
	}
	if provisioned == 0 {
		fmt.Fprintln(p.out, dimColor.Sprint("every signed deal already has deliverables"))
		return nil
	}
	fmt.Fprintf(p.out, "%s deliverables for %d deal(s)\n", okColor.Sprint("provisioned"), provisioned)
	return nil
}

func (p printer) seeded(summary service.SeedSummary) error {
	if p.format == FormatJSON {
		return p.json(summary)
	}
	fmt.Fprintf(p.out, "%s %d package(s): %d inserted, %d updated\n",
		okColor.Sprint("seeded"), summary.Total, summary.Inserted, summary.Updated)
	return nil
}

func (p printer) board(board kanban.Board) error {
	if p.format == FormatJSON {
		return p.json(board)
	}
	for _, column := range board.Columns {
		c, ok := columnColors[column.Status]
		if !ok {
			c = headerColor
		}
		fmt.Fprintf(p.out, "%s (%d) %s\n", c.Sprint(column.Status), column.Count, formatMoney(column.TotalValue))
		if len(column.Deals) == 0 {
			fmt.Fprintln(p.out, dimColor.Sprint("  no deals"))
		}
		for _, deal := range column.Deals {
			fmt.Fprintf(p.out, "  - %s / %s  %s  %s\n", orUnknown(deal.SponsorName), orUnknown(deal.EventTitle), deal.Level, formatMoney(deal.TotalValue()))
		}
	}
	if board.Hidden > 0 {
		fmt.Fprintln(p.out, warnColor.Sprintf("%d deal(s) in statuses outside the board", board.Hidden))
	}
	return nil
}

func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
