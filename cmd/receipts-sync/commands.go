package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/constants"
	"github.com/joseph-ayodele/receipts-sync/internal/analytics"
	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/app"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/currency"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/export"
	"github.com/joseph-ayodele/receipts-sync/internal/ingest"
	"github.com/joseph-ayodele/receipts-sync/internal/reconcile"
)

type command func(ctx context.Context, a *app.App, args []string) error

var commands = map[string]command{
	"list":        runList,
	"stores":      runStores,
	"show":        runShow,
	"scan":        runScan,
	"delete":      runDelete,
	"delete-item": runDeleteItem,
	"analyze":     runAnalyze,
	"apply":       runApply,
	"accept":      runAccept,
	"restore":     runRestore,
	"breakdown":   runBreakdown,
	"export":      runExport,
	"ingest":      runIngest,
}

var stdout io.Writer = os.Stdout

// filterFlags registers the shared list filters on fs.
func filterFlags(fs *flag.FlagSet) func() (entity.ReceiptFilters, error) {
	var (
		store    = fs.String("store", "", "store name")
		category = fs.String("category", "", "category id")
		fromStr  = fs.String("from", "", "from date YYYY-MM-DD")
		toStr    = fs.String("to", "", "to date YYYY-MM-DD")
		tag      = fs.String("tag", "", "tag")
		code     = fs.String("currency", "", "receipt currency code")
	)
	return func() (entity.ReceiptFilters, error) {
		f := entity.ReceiptFilters{StoreName: *store, Tag: *tag, Currency: strings.ToUpper(*code)}
		if *category != "" {
			id, err := uuid.Parse(*category)
			if err != nil {
				return f, fmt.Errorf("invalid -category: %w", common.ErrInvalidInput)
			}
			f.CategoryID = &id
		}
		for _, d := range []struct {
			raw string
			dst **time.Time
		}{{*fromStr, &f.From}, {*toStr, &f.To}} {
			if d.raw == "" {
				continue
			}
			parsed, err := time.Parse("2006-01-02", d.raw)
			if err != nil {
				return f, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", d.raw, common.ErrInvalidInput)
			}
			*d.dst = &parsed
		}
		err := common.NewValidator().Field("currency", f.Currency, common.CurrencyCode).Error()
		return f, err
	}
}

func parseIDs(args []string, names ...string) ([]uuid.UUID, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("expected %s: %w", strings.Join(names, " "), common.ErrInvalidInput)
	}
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		id, err := uuid.Parse(args[i])
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, args[i], common.ErrInvalidInput)
		}
		ids[i] = id
	}
	return ids, nil
}

func runList(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	filters := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := filters()
	if err != nil {
		return err
	}

	receipts, err := a.Store.List(ctx, f)
	if err != nil {
		return err
	}
	display := a.Config.Display.Currency
	rates := a.Rates.Table(ctx)

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tDATE\tSTORE\tTOTAL\t%s\tSTATUS\n", display)
	for _, r := range receipts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.PurchaseDate.Format("2006-01-02"),
			r.StoreName,
			currency.Format(r.TotalAmount, r.Currency),
			currency.Format(currency.Round(currency.Convert(r.TotalAmount, r.Currency, display, rates)), display),
			a.Engine.Status(ctx, r),
		)
	}
	return w.Flush()
}

func runStores(ctx context.Context, a *app.App, _ []string) error {
	names, err := a.Store.StoreNames(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(stdout, n)
	}
	return nil
}

func runShow(ctx context.Context, a *app.App, args []string) error {
	ids, err := parseIDs(args, "receipt-id")
	if err != nil {
		return err
	}
	r, err := a.Store.Get(ctx, ids[0])
	if err != nil {
		return err
	}
	categories, err := a.CategoryList(ctx)
	if err != nil {
		a.Logger.Warn("show.categories.unavailable", "error", err)
	}
	printReceipt(r, entity.CategoryNames(categories))
	printSummary(reconcile.Summarize(r), a.Engine.Status(ctx, r))

	display := a.Config.Display.Currency
	if !strings.EqualFold(display, r.Currency) {
		rates := a.Rates.Table(ctx)
		s := reconcile.SummarizeIn(r, display, rates)
		note := ""
		if !currency.Converted(r.Currency, display, rates) {
			note = " (no rate, unconverted)"
		}
		fmt.Fprintf(stdout, "in %s: total %s, items %s%s\n", display,
			currency.Format(s.ReceiptTotal, display), currency.Format(s.ItemsTotal, display), note)
	}
	return nil
}

func printReceipt(r *entity.Receipt, names map[uuid.UUID]string) {
	fmt.Fprintf(stdout, "%s  %s  %s\n", r.PurchaseDate.Format("2006-01-02"), r.StoreName, r.ID)
	if len(r.Tags) > 0 {
		fmt.Fprintf(stdout, "tags: %s\n", strings.Join(r.Tags, ", "))
	}
	if r.Notes != "" {
		fmt.Fprintf(stdout, "notes: %s\n", r.Notes)
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM ID\tNAME\tQTY\tUNIT\tTOTAL\tCATEGORY")
	for _, it := range r.Items {
		code := it.Currency
		if code == "" {
			code = r.Currency
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", it.ID, it.Name, it.Quantity,
			currency.Format(it.UnitPrice, code), currency.Format(it.TotalPrice, code),
			constants.CategoryLabel(it.CategoryID, names))
	}
	_ = w.Flush()
	for i, ar := range r.AutoRemovedItems {
		fmt.Fprintf(stdout, "auto-removed [%d] %s %s (%s)\n", i, ar.Name, currency.Format(ar.TotalPrice, r.Currency), ar.Reason)
	}
}

func printSummary(s reconcile.Summary, status constants.ReceiptStatus) {
	fmt.Fprintf(stdout, "stated %s  items %s  delta %s  status %s\n",
		currency.Format(s.ReceiptTotal, s.Currency),
		currency.Format(s.ItemsTotal, s.Currency),
		s.Delta.StringFixed(currency.DisplayPlaces),
		status,
	)
}

func runScan(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("expected image path: %w", common.ErrInvalidInput)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := a.Store.Scan(ctx, api.ScanRequest{Filename: filepath.Base(args[0]), Image: f})
	if err != nil {
		return err
	}
	printReceipt(r, nil)
	printSummary(reconcile.Summarize(r), a.Engine.Status(ctx, r))
	return nil
}

func runDelete(ctx context.Context, a *app.App, args []string) error {
	ids, err := parseIDs(args, "receipt-id")
	if err != nil {
		return err
	}
	if err := a.Store.DeleteReceipt(ctx, ids[0]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted %s\n", ids[0])
	return nil
}

func runDeleteItem(ctx context.Context, a *app.App, args []string) error {
	ids, err := parseIDs(args, "receipt-id", "item-id")
	if err != nil {
		return err
	}
	r, err := a.Store.DeleteItem(ctx, ids[0], ids[1])
	if err != nil {
		return err
	}
	printSummary(reconcile.Summarize(r), a.Engine.Status(ctx, r))
	return nil
}

func runAnalyze(ctx context.Context, a *app.App, args []string) error {
	ids, err := parseIDs(args, "receipt-id")
	if err != nil {
		return err
	}
	s, cached, err := a.Engine.Analyze(ctx, ids[0])
	if err != nil {
		return err
	}
	if cached {
		fmt.Fprintln(stdout, "suggestion reused (receipt unchanged since analysis)")
	}
	if len(s.Adjustments) == 0 {
		fmt.Fprintln(stdout, "no adjustments suggested")
		return nil
	}
	for i, adj := range s.Adjustments {
		fmt.Fprintf(stdout, "%d. remove %s: %s\n", i+1, adj.ItemID, adj.Reason)
	}
	return nil
}

func runApply(ctx context.Context, a *app.App, args []string) error {
	ids, err := parseIDs(args, "receipt-id")
	if err != nil {
		return err
	}
	res, err := a.Engine.ApplySuggestion(ctx, ids[0])
	if res != nil {
		for i, step := range res.Steps {
			line := fmt.Sprintf("%d. %s %s", i+1, step.Status, step.ItemID)
			if step.Err != nil {
				line += ": " + common.Message(step.Err)
			}
			fmt.Fprintln(stdout, line)
		}
		printSummary(res.Summary, a.Engine.Status(ctx, res.Receipt))
	}
	if errors.Is(err, common.ErrNoSuggestion) {
		return fmt.Errorf("%w; run analyze first", err)
	}
	return err
}

func runAccept(ctx context.Context, a *app.App, args []string) error {
	ids, err := parseIDs(args, "receipt-id")
	if err != nil {
		return err
	}
	r, err := a.Engine.AcceptItemsAsTruth(ctx, ids[0])
	if err != nil {
		return err
	}
	printSummary(reconcile.Summarize(r), a.Engine.Status(ctx, r))
	return nil
}

func runRestore(ctx context.Context, a *app.App, args []string) error {
	ids, err := parseIDs(args, "receipt-id")
	if err != nil {
		return err
	}
	var indexes []int
	for _, raw := range args[1:] {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", raw, common.ErrInvalidInput)
		}
		indexes = append(indexes, i)
	}

	res, err := a.Engine.RestoreAutoRemoved(ctx, ids[0], indexes...)
	if res != nil {
		for _, it := range res.Items {
			line := fmt.Sprintf("%s %s", it.Status, it.Name)
			if it.Err != nil {
				line += ": " + common.Message(it.Err)
			}
			fmt.Fprintln(stdout, line)
		}
	}
	return err
}

func runBreakdown(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("breakdown", flag.ContinueOnError)
	by := fs.String("by", "category", "category, store, or currency")
	filters := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := filters()
	if err != nil {
		return err
	}

	receipts, err := a.Store.List(ctx, f)
	if err != nil {
		return err
	}
	display := a.Config.Display.Currency
	rates := a.Rates.Table(ctx)

	var b analytics.Breakdown
	switch *by {
	case "category":
		categories, err := a.CategoryList(ctx)
		if err != nil {
			a.Logger.Warn("breakdown.categories.unavailable", "error", err)
		}
		b = analytics.ByCategory(receipts, categories, display, rates)
	case "store":
		b = analytics.ByStore(receipts, display, rates)
	case "currency":
		b = analytics.ByCurrency(receipts, display, rates)
	default:
		return fmt.Errorf("-by must be category, store, or currency: %w", common.ErrInvalidInput)
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tCOUNT\t%s\n", strings.ToUpper(*by), b.Currency)
	for _, bucket := range b.Buckets {
		fmt.Fprintf(w, "%s\t%d\t%s\n", bucket.Label, bucket.Count, currency.Format(bucket.Total, b.Currency))
	}
	fmt.Fprintf(w, "TOTAL\t\t%s\n", currency.Format(b.Total, b.Currency))
	if err := w.Flush(); err != nil {
		return err
	}
	if len(b.Unconverted) > 0 {
		fmt.Fprintf(stdout, "no rate for %s; those amounts are shown unconverted\n", strings.Join(b.Unconverted, ", "))
	}
	return nil
}

func runExport(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "receipts.xlsx", "output XLSX file path")
	filters := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := filters()
	if err != nil {
		return err
	}

	receipts, err := a.Store.List(ctx, f)
	if err != nil {
		return err
	}
	categories, err := a.CategoryList(ctx)
	if err != nil {
		a.Logger.Warn("export.categories.unavailable", "error", err)
	}

	data, err := a.Export.ExportReceiptsXLSX(ctx, export.Request{
		Receipts:   receipts,
		Categories: categories,
		Currency:   a.Config.Display.Currency,
		Rates:      a.Rates.Table(ctx),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported %d receipts to %s\n", len(receipts), *out)
	return nil
}

func runIngest(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	skipHidden := fs.Bool("skip-hidden", true, "ignore dot files and dot directories")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("expected a file or directory: %w", common.ErrInvalidInput)
	}
	root := fs.Arg(0)

	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		res, err := a.Ingestor.IngestPath(ctx, root)
		if err != nil {
			return err
		}
		printIngest(res)
		return nil
	}

	results, stats, err := a.Ingestor.IngestDirectory(ctx, root, *skipHidden)
	for _, res := range results {
		printIngest(res)
	}
	fmt.Fprintf(stdout, "matched %d, scanned %d, duplicates %d, failed %d\n",
		stats.Matched, stats.Succeeded-stats.Deduplicated, stats.Deduplicated, stats.Failed)
	return err
}

func printIngest(res ingest.IngestionResult) {
	switch {
	case res.Err != "":
		fmt.Fprintf(stdout, "FAILED     %s: %s\n", res.SourcePath, res.Err)
	case res.Deduplicated:
		fmt.Fprintf(stdout, "DUPLICATE  %s -> %s\n", res.SourcePath, res.ReceiptID)
	default:
		fmt.Fprintf(stdout, "SCANNED    %s -> %s\n", res.SourcePath, res.ReceiptID)
	}
}
