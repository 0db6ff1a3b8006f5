package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/receipts-sync/internal/common"
)

// request describes one HTTP exchange. Body is JSON-encoded unless Raw is set.
type request struct {
	Op          string
	Method      string
	URL         string
	Body        any
	Raw         io.Reader
	ContentType string
	Headers     map[string]string
}

// send performs the request and returns the raw body of a 2xx response.
// Every failure comes back as *Error.
func send(ctx context.Context, client *http.Client, r request, logger *slog.Logger) ([]byte, error) {
	reqID := common.RequestIDFromContext(ctx)
	start := time.Now()

	var body io.Reader
	contentType := r.ContentType
	switch {
	case r.Raw != nil:
		body = r.Raw
	case r.Body != nil:
		bs, err := json.Marshal(r.Body)
		if err != nil {
			logger.Error("api.http.encode_error", "req_id", reqID, "op", r.Op, "error", err)
			return nil, &Error{Op: r.Op, Code: codes.Internal, Cause: fmt.Errorf("encode json: %w", err)}
		}
		body = bytes.NewReader(bs)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		logger.Error("api.http.build_request_error", "req_id", reqID, "op", r.Op, "error", err)
		return nil, &Error{Op: r.Op, Code: codes.Internal, Cause: fmt.Errorf("build request: %w", err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	logger.Debug("api.http.request", "req_id", reqID, "op", r.Op, "method", r.Method, "url", r.URL)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("api.http.send_error", "req_id", reqID, "op", r.Op, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, transportError(r.Op, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Warn("api.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("api.http.read_error", "req_id", reqID, "op", r.Op, "error", err)
		return nil, transportError(r.Op, fmt.Errorf("read body: %w", err))
	}

	logger.Info("api.http.response",
		"req_id", reqID,
		"op", r.Op,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, statusError(r.Op, resp.StatusCode, raw)
	}
	return raw, nil
}
