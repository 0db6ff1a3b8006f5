package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/receipts-sync/constants"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Config for the HTTP API client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{cfg: cfg, http: httpClient, logger: logger}
}

func (c *HTTPClient) ScanReceipt(ctx context.Context, in ScanRequest) (*entity.Receipt, error) {
	const op = "scan_receipt"
	ext := filepath.Ext(in.Filename)
	mimeType, ok := constants.ImageMimeType(ext)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image extension %q", common.ErrInvalidInput, ext)
	}
	if in.Image == nil {
		return nil, fmt.Errorf("%w: image is required", common.ErrInvalidInput)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(in.Filename)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, &Error{Op: op, Code: codes.Internal, Cause: err}
	}
	if _, err := io.Copy(part, in.Image); err != nil {
		return nil, &Error{Op: op, Code: codes.Internal, Cause: fmt.Errorf("read image: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Op: op, Code: codes.Internal, Cause: err}
	}

	raw, err := c.do(ctx, request{
		Op:          op,
		Method:      http.MethodPost,
		URL:         c.url("receipts", "scan"),
		Raw:         &buf,
		ContentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	return decodeReceipt(op, raw)
}

func (c *HTTPClient) GetReceipts(ctx context.Context, filters entity.ReceiptFilters) ([]*entity.Receipt, error) {
	const op = "get_receipts"
	u := c.url("receipts")
	if q := filters.Query().Encode(); q != "" {
		u += "?" + q
	}
	raw, err := c.do(ctx, request{Op: op, Method: http.MethodGet, URL: u})
	if err != nil {
		return nil, err
	}
	var out []*entity.Receipt
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError(op, err)
	}
	return out, nil
}

func (c *HTTPClient) GetReceipt(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	const op = "get_receipt"
	raw, err := c.do(ctx, request{Op: op, Method: http.MethodGet, URL: c.url("receipts", id.String())})
	if err != nil {
		return nil, err
	}
	return decodeReceipt(op, raw)
}

func (c *HTTPClient) UpdateReceipt(ctx context.Context, id uuid.UUID, patch entity.ReceiptPatch) (*entity.Receipt, error) {
	const op = "update_receipt"
	if err := common.NewValidator().
		Field("total_amount", patch.TotalAmount, common.NonNegative).
		Field("tax_amount", patch.TaxAmount, common.NonNegative).
		Field("currency", patch.Currency, common.CurrencyCode).
		Error(); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, request{Op: op, Method: http.MethodPatch, URL: c.url("receipts", id.String()), Body: patch})
	if err != nil {
		return nil, err
	}
	return decodeReceipt(op, raw)
}

func (c *HTTPClient) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	_, err := c.do(ctx, request{Op: "delete_receipt", Method: http.MethodDelete, URL: c.url("receipts", id.String())})
	return err
}

func (c *HTTPClient) CreateReceiptItem(ctx context.Context, receiptID uuid.UUID, in entity.ItemInput) (*entity.Receipt, error) {
	const op = "create_receipt_item"
	if err := common.NewValidator().
		Field("name", in.Name, common.Required).
		Field("quantity", in.Quantity, common.NonNegative).
		Field("unit_price", in.UnitPrice, common.NonNegative).
		Field("currency", in.Currency, common.CurrencyCode).
		Error(); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, request{Op: op, Method: http.MethodPost, URL: c.url("receipts", receiptID.String(), "items"), Body: in})
	if err != nil {
		return nil, err
	}
	return decodeReceipt(op, raw)
}

func (c *HTTPClient) UpdateReceiptItem(ctx context.Context, receiptID, itemID uuid.UUID, patch entity.ItemPatch) (*entity.Receipt, error) {
	const op = "update_receipt_item"
	if err := common.NewValidator().
		Field("quantity", patch.Quantity, common.NonNegative).
		Field("unit_price", patch.UnitPrice, common.NonNegative).
		Error(); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, request{
		Op:     op,
		Method: http.MethodPatch,
		URL:    c.url("receipts", receiptID.String(), "items", itemID.String()),
		Body:   patch,
	})
	if err != nil {
		return nil, err
	}
	return decodeReceipt(op, raw)
}

func (c *HTTPClient) DeleteReceiptItem(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
	const op = "delete_receipt_item"
	raw, err := c.do(ctx, request{
		Op:     op,
		Method: http.MethodDelete,
		URL:    c.url("receipts", receiptID.String(), "items", itemID.String()),
	})
	if err != nil {
		return nil, err
	}
	return decodeReceipt(op, raw)
}

func (c *HTTPClient) GetReconciliationSuggestion(ctx context.Context, receiptID uuid.UUID) (*entity.Suggestion, error) {
	const op = "get_reconciliation_suggestion"
	raw, err := c.do(ctx, request{
		Op:     op,
		Method: http.MethodPost,
		URL:    c.url("receipts", receiptID.String(), "reconcile", "suggest"),
	})
	if err != nil {
		return nil, err
	}
	if err := validateJSON("suggestion.json", suggestionSchema(), raw); err != nil {
		c.logger.Error("api.suggestion.schema_validation_failed", "receipt_id", receiptID, "error", err)
		return nil, decodeError(op, err)
	}
	var out entity.Suggestion
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError(op, err)
	}
	return &out, nil
}

func (c *HTTPClient) GetExchangeRates(ctx context.Context, base string) (*entity.ExchangeRateTable, error) {
	const op = "get_exchange_rates"
	u := c.url("exchange-rates") + "?" + url.Values{"base": {strings.ToUpper(base)}}.Encode()
	raw, err := c.do(ctx, request{Op: op, Method: http.MethodGet, URL: u})
	if err != nil {
		return nil, err
	}
	if err := validateJSON("exchange_rates.json", exchangeRatesSchema(), raw); err != nil {
		c.logger.Error("api.exchange_rates.schema_validation_failed", "base", base, "error", err)
		return nil, decodeError(op, err)
	}
	var out entity.ExchangeRateTable
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError(op, err)
	}
	out.Base = strings.ToUpper(out.Base)
	return &out, nil
}

func (c *HTTPClient) ListCategories(ctx context.Context) ([]entity.Category, error) {
	const op = "list_categories"
	raw, err := c.do(ctx, request{Op: op, Method: http.MethodGet, URL: c.url("categories")})
	if err != nil {
		return nil, err
	}
	var out []entity.Category
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError(op, err)
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, r request) ([]byte, error) {
	if c.cfg.Token != "" {
		r.Headers = map[string]string{"Authorization": "Bearer " + c.cfg.Token}
	}
	return send(ctx, c.http, r, c.logger)
}

func (c *HTTPClient) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.cfg.BaseURL + "/" + strings.Join(escaped, "/")
}

func decodeReceipt(op string, raw []byte) (*entity.Receipt, error) {
	var out entity.Receipt
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError(op, err)
	}
	return &out, nil
}
