package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/ranking"
)

const (
	maxTitleWidth  = 48
	maxReasonWidth = 60
	htmlFileMode   = 0o644
)

var errRunMisconfigured = errors.New("run misconfigured: no completion backend")

type runOptions struct {
	recipient  string
	maxResults int
	countries  []string
	minTier    string
	minScore   float64
	maxPrice   float64
	htmlPath   string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the deals that were sent",
		Example: `  deal-finder run --recipient me@example.com
  deal-finder run --recipient me@example.com --max-results 5 --country IT --country FR`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.recipient, "recipient", "", "digest recipient (default is schedule.recipient)")
	cmd.Flags().IntVar(&opts.maxResults, "max-results", 0, "deals to send (default is pipeline.default_max_results)")
	cmd.Flags().StringSliceVar(&opts.countries, "country", nil, "only scrape these countries, by name or code")
	cmd.Flags().StringVar(&opts.minTier, "min-tier", "", "drop deals below this tier (exceptional, great, good)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "drop deals scoring below this")
	cmd.Flags().Float64Var(&opts.maxPrice, "max-price", 0, "drop deals priced above this")
	cmd.Flags().StringVar(&opts.htmlPath, "html", "", "also write the rendered digest to this file")

	return cmd
}

func runOnce(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Tables go to stdout, logs to stderr.
	log, err := createLogger(cfg, "stderr")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	filters := domain.Filters{
		Countries: opts.countries,
		MinScore:  opts.minScore,
		MaxPrice:  opts.maxPrice,
		MinTier:   domain.Tier(opts.minTier),
	}
	if filters.MinTier != "" && !filters.MinTier.Valid() {
		return fmt.Errorf("unknown tier %q", opts.minTier)
	}

	recipient := opts.recipient
	if recipient == "" {
		recipient = cfg.Schedule.Recipient
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, bootstrap.RunTimeout(cfg))
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}
	defer func() {
		if closeErr := components.Close(); closeErr != nil {
			log.Warn("Failed to close components", logger.Error(closeErr))
		}
	}()

	req := pipeline.Request{Recipient: recipient, Filters: filters}
	if cmd.Flags().Changed("max-results") {
		req.MaxResults = new(opts.maxResults)
	}

	res, err := components.Orchestrator.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	renderRun(cmd.OutOrStdout(), res)

	if opts.htmlPath != "" && res.PreviewHTML != "" {
		if writeErr := os.WriteFile(opts.htmlPath, []byte(res.PreviewHTML), htmlFileMode); writeErr != nil {
			return fmt.Errorf("write digest: %w", writeErr)
		}
	}

	if res.Status == domain.RunStatusMisconfigured {
		return errRunMisconfigured
	}
	return nil
}

// renderRun prints the sent deals, the per-country report and a summary line.
func renderRun(w io.Writer, res domain.RunResult) {
	if len(res.Deals) > 0 {
		deals := table.NewWriter()
		deals.SetOutputMirror(w)
		deals.SetStyle(table.StyleLight)
		deals.AppendHeader(table.Row{"#", "Title", "Price", "Score", "Tier", "Brand", "Country", "Reason"})
		deals.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Title", WidthMax: maxTitleWidth},
			{Name: "Price", Align: text.AlignRight},
			{Name: "Score", Align: text.AlignRight},
			{Name: "Reason", WidthMax: maxReasonWidth},
		})
		for i, d := range res.Deals {
			deals.AppendRow(table.Row{
				i + 1,
				d.Title,
				fmt.Sprintf("€%.2f", d.Price),
				strconv.FormatFloat(d.DealScore, 'f', -1, 64),
				d.Tier(),
				d.Brand,
				d.Country,
				d.DealReason,
			})
		}
		deals.Render()
	}

	countries := table.NewWriter()
	countries.SetOutputMirror(w)
	countries.SetStyle(table.StyleLight)
	countries.AppendHeader(table.Row{"Country", "Chars", "Deals", "Dropped", "Skipped", "Error"})
	for _, c := range res.Countries {
		skipped := ""
		if c.Skipped {
			skipped = "yes"
		}
		countries.AppendRow(table.Row{c.Country, c.FetchedChars, c.Deals, c.Dropped, skipped, c.Error})
	}
	countries.AppendFooter(table.Row{"Total", "", res.DealsFound, "", "", ""})
	countries.Render()

	if len(res.Deals) > 0 {
		counts := ranking.CountByTier(res.Deals)
		tiers := table.NewWriter()
		tiers.SetOutputMirror(w)
		tiers.SetStyle(table.StyleLight)
		tiers.AppendHeader(table.Row{"Tier", "Deals"})
		for _, tier := range []domain.Tier{domain.TierExceptional, domain.TierGreat, domain.TierGood, domain.TierBelow} {
			tiers.AppendRow(table.Row{tier, counts[tier]})
		}
		tiers.Render()
	}

	delivery := "not delivered"
	switch {
	case res.Delivered:
		delivery = "delivered"
	case res.DeliveryError != "":
		delivery = "delivery failed: " + res.DeliveryError
	}
	_, _ = fmt.Fprintf(w, "Run %s: status=%s found=%d sent=%d %s (%s)\n",
		res.RunID, res.Status, res.DealsFound, res.DealsSent, delivery, res.Duration.Round(time.Millisecond))
}
