package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mse-pipeline/src/config"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/service"
)

const usage = `usage: mse [-config path] <command> [flags]

commands:
  symbols        refresh the issuer list and print CODE: Name
  fetch          fetch one symbol over a date range
  fetch-all      fetch every issuer year by year, writing CSV checkpoints
  fetch-stale    bring every issuer up to date from its last update
  import-csv     load CSV checkpoints into the database
  news           collect the latest issuer news
  news-content   fill in article text for stored news
  summary        print the stored price summary of a symbol
  clear-prices   delete every stored price row
`

type command func(ctx context.Context, svc *service.Service, args []string) error

var commands = map[string]command{
	"symbols":      runSymbols,
	"fetch":        runFetch,
	"fetch-all":    runFetchAll,
	"fetch-stale":  runFetchStale,
	"import-csv":   runImportCSV,
	"news":         runNews,
	"news-content": runNewsContent,
	"summary":      runSummary,
	"clear-prices": runClearPrices,
}

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	name, args := flag.Arg(0), flag.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(2)
	}

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if name == "import-csv" {
		// --threads sizes the importer, which is wired at build time
		applyThreads(conf, args)
	}

	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Build(ctx, conf, nil, appLogger)
	if err != nil {
		appLogger.Critical("Failed to build service: %v", err)
	}

	err = cmd(ctx, svc, args)
	svc.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
}
