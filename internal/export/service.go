package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-sync/constants"
	"github.com/joseph-ayodele/receipts-sync/internal/currency"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/reconcile"
)

const (
	receiptsSheet = "Receipts"
	itemsSheet    = "Items"
)

// Request is one export: the receipts to write and how to present them.
type Request struct {
	Receipts   []*entity.Receipt
	Categories []entity.Category
	Currency   string // display currency for the converted total column
	Rates      *entity.ExchangeRateTable
}

// Service produces XLSX workbooks from cached receipts.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportReceiptsXLSX returns a workbook with a Receipts sheet carrying the
// reconciliation columns and an Items sheet with one row per line item.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	display := strings.ToUpper(strings.TrimSpace(req.Currency))

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(receiptsSheet)
	f.SetActiveSheet(activeIndex)

	writeRow(f, receiptsSheet, 1, []any{
		"Purchase Date",
		"Store",
		"Currency",
		"Stated Total",
		"Items Total",
		"Delta",
		"Mismatch",
		"Total (" + display + ")",
		"Tags",
		"Notes",
	})
	writeRow(f, itemsSheet, 1, []any{
		"Purchase Date",
		"Store",
		"Item",
		"Quantity",
		"Unit Price",
		"Total Price",
		"Currency",
		"Category",
	})

	names := entity.CategoryNames(req.Categories)
	row, itemRow := 2, 2
	for _, r := range req.Receipts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum := reconcile.Summarize(r)
		date := ""
		if !r.PurchaseDate.IsZero() {
			date = r.PurchaseDate.Format("2006-01-02")
		}

		writeRow(f, receiptsSheet, row, []any{
			date,
			r.StoreName,
			r.Currency,
			money(sum.ReceiptTotal),
			money(sum.ItemsTotal),
			money(sum.Delta),
			yesNo(sum.HasMismatch),
			money(currency.Round(currency.Convert(r.TotalAmount, r.Currency, display, req.Rates))),
			strings.Join(r.Tags, ", "),
			truncate(r.Notes, 140),
		})
		row++

		for _, it := range r.Items {
			code := it.Currency
			if code == "" {
				code = r.Currency
			}
			writeRow(f, itemsSheet, itemRow, []any{
				date,
				r.StoreName,
				it.Name,
				it.Quantity,
				money(it.UnitPrice),
				money(it.TotalPrice),
				code,
				constants.CategoryLabel(it.CategoryID, names),
			})
			itemRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(receiptsSheet, "A", "A", 14) // date
	_ = f.SetColWidth(receiptsSheet, "B", "B", 28) // store
	_ = f.SetColWidth(receiptsSheet, "D", "H", 14) // amounts
	_ = f.SetColWidth(receiptsSheet, "J", "J", 48) // notes
	_ = f.SetColWidth(itemsSheet, "B", "C", 28)
	_ = f.SetColWidth(itemsSheet, "H", "H", 22) // category

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"receipts", len(req.Receipts),
		"items", itemRow-2,
		"currency", display,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// money writes amounts as numeric cells rounded to display places.
func money(d decimal.Decimal) float64 {
	v, _ := currency.Round(d).Float64()
	return v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
