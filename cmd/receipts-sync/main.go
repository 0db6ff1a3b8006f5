package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/receipts-sync/internal/app"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
)

const usage = `usage: receipts-sync <command> [flags] [args]

commands:
  list        [filters]                    list receipts with reconciliation status
  stores                                   distinct store names
  show        <receipt-id>                 receipt, items, and reconciliation summary
  scan        <image>                      upload a receipt image
  ingest      [-skip-hidden] <file|dir>    scan every new image, skipping already-scanned content
  delete      <receipt-id>                 delete a receipt
  delete-item <receipt-id> <item-id>       delete one line item
  analyze     <receipt-id>                 fetch (or reuse) the AI repair suggestion
  apply       <receipt-id>                 apply the current suggestion
  accept      <receipt-id>                 set the stated total to the items sum
  restore     <receipt-id> [index...]      recreate auto-removed items
  breakdown   -by category|store|currency [filters]
  export      -out file.xlsx [filters]

filters: -store -category -from YYYY-MM-DD -to YYYY-MM-DD -tag -currency
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	if len(os.Args) < 2 {
		printError("%s", usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		printError("unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = common.WithRequestID(ctx, common.RequestIDFromContext(ctx))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	err = cmd(ctx, a, os.Args[2:])
	a.Cleanup()
	if err != nil {
		printError("Error: %s\n", common.Message(err))
		os.Exit(1)
	}
}
