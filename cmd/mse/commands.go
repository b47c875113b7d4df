package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"mse-pipeline/src/config"
	"mse-pipeline/src/helpers"
	"mse-pipeline/src/scraper"
	"mse-pipeline/src/service"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------

func runSymbols(ctx context.Context, svc *service.Service, _ []string) error {
	codes, err := svc.RefreshSymbols(ctx)
	if err != nil {
		return err
	}
	issuers, err := svc.ListIssuers(ctx)
	if err != nil {
		return err
	}

	names := make(map[string]string, len(issuers))
	for _, is := range issuers {
		names[is.Code] = is.Name
	}
	for _, code := range codes {
		fmt.Printf("%s: %s\n", code, names[code])
	}
	fmt.Printf("\n%d issuers\n", len(codes))
	return nil
}

// -----------------------------------------------------------------------------

func runFetch(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "issuer code")
	fromStr := fs.String("from-date", "", "start date, YYYY-MM-DD or M/D/YYYY")
	toStr := fs.String("to-date", "", "end date, YYYY-MM-DD or M/D/YYYY")
	noSave := fs.Bool("no-db-save", false, "only scrape, do not write to the database")
	quiet := fs.Bool("quiet", false, "do not print the fetched rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" {
		return helpers.NewConfigurationError(nil, "--symbol is required")
	}

	from, err := scraper.ParseDate(*fromStr)
	if err != nil {
		return helpers.NewConfigurationError(err, "invalid --from-date %q", *fromStr)
	}
	to, err := scraper.ParseDate(*toStr)
	if err != nil {
		return helpers.NewConfigurationError(err, "invalid --to-date %q", *toStr)
	}

	res, err := svc.FetchSymbol(ctx, *symbol, from, to, !*noSave)
	if err != nil {
		return err
	}

	if !*quiet {
		fmt.Printf("%-10s %10s %10s %10s %10s %8s %10s %14s\n",
			"Date", "Last", "Max", "Min", "Avg", "%Chg", "Volume", "Turnover")
		for _, r := range res.Report.Rows {
			fmt.Printf("%-10s %10s %10s %10s %10s %8s %10d %14s\n", r.Date.Format("2006-01-02"),
				r.LastTradePrice.StringFixed(2), r.MaxPrice.StringFixed(2), r.MinPrice.StringFixed(2),
				r.AvgPrice.StringFixed(2), r.PriceChange.StringFixed(2), r.Volume, r.TotalTurnover.StringFixed(2))
		}
	}
	fmt.Printf("%s: %d rows (%d/%d chunks ok, %d empty, %d failed), %d written\n", res.Symbol,
		len(res.Report.Rows), res.Report.ChunksOK, res.Report.ChunksTotal, res.Report.ChunksEmpty,
		res.Report.ChunksFailed, res.Written)
	return nil
}

// -----------------------------------------------------------------------------

func runFetchAll(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("fetch-all", flag.ContinueOnError)
	fromYear := fs.Int("from-year", 0, "first year (default from config)")
	toYear := fs.Int("to-year", 0, "last year (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	summary, err := svc.FetchAll(ctx, uuid.NewString(), *fromYear, *toYear)
	if summary != nil {
		fmt.Printf("Run %s: %d tasks, %d succeeded, %d without data, %d failed, %d skipped in %.2f seconds\n",
			summary.RunID, summary.Total, summary.Succeeded, summary.NoData, summary.Failed, summary.Skipped, summary.Seconds)
	}
	return err
}

func runFetchStale(ctx context.Context, svc *service.Service, _ []string) error {
	codes, err := svc.FetchStale(ctx)
	fmt.Printf("%d issuers up to date\n", len(codes))
	return err
}

// -----------------------------------------------------------------------------

func applyThreads(conf *config.Config, args []string) {
	fs := flag.NewFlagSet("import-csv", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	threads := fs.Int("threads", 0, "")
	fs.String("dir", "", "")
	if fs.Parse(args) == nil && *threads > 0 {
		conf.Orchestrator.Workers = *threads
	}
}

func runImportCSV(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("import-csv", flag.ContinueOnError)
	dir := fs.String("dir", "", "directory of SYMBOL_YEAR.csv files (default from config)")
	fs.Int("threads", 0, "parallel files (default orchestrator.workers)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := svc.ImportCSV(ctx, *dir)
	fmt.Printf("Imported %d records\n", n)
	return err
}

// -----------------------------------------------------------------------------

func runNews(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("news", flag.ContinueOnError)
	issuer := fs.String("issuer", "", "comma-separated issuer codes (default all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var codes []string
	for _, c := range strings.Split(*issuer, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	added, err := svc.CollectNews(ctx, codes)
	fmt.Printf("Added %d news items\n", added)
	return err
}

func runNewsContent(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("news-content", flag.ContinueOnError)
	emptyOnly := fs.Bool("empty-only", false, "only fetch content for news items with empty content")
	if err := fs.Parse(args); err != nil {
		return err
	}

	updated, err := svc.FetchNewsContent(ctx, *emptyOnly)
	fmt.Printf("Updated content for %d news items\n", updated)
	return err
}

// -----------------------------------------------------------------------------

func runSummary(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "issuer code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" {
		return helpers.NewConfigurationError(nil, "--symbol is required")
	}

	s, err := svc.Summary(ctx, *symbol)
	if err != nil {
		return err
	}
	if s.Count == 0 {
		fmt.Printf("%s: no stored prices\n", s.Code)
		return nil
	}
	fmt.Printf("%s: %d sessions %s..%s\n", s.Code, s.Count, s.FirstDate.Format("2006-01-02"), s.LastDate.Format("2006-01-02"))
	fmt.Printf("  price  first %s last %s min %s max %s mean %s change %s%%\n",
		s.FirstPrice, s.LastPrice, s.MinPrice, s.MaxPrice, s.MeanPrice, s.ChangePercent)
	fmt.Printf("  volume total %d mean %.1f std %.1f last z %.2f\n", s.TotalVolume, s.MeanVolume, s.StdVolume, s.LastVolumeZScore)
	return nil
}

func runClearPrices(ctx context.Context, svc *service.Service, _ []string) error {
	n, err := svc.ClearPrices(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d records\n", n)
	return nil
}
