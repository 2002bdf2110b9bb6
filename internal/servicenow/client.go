// Package servicenow provides the HTTP client for the ServiceNow Attachment API.
//
// # Client Architecture
//
// The Client wraps Go's standard net/http.Client and performs exactly one
// authenticated POST per upload:
//
//	POST {base}/attachment/file?table_name=<T>&table_sys_id=<ID>&file_name=<F>
//	Authorization: Basic <credential>
//	Content-Type: <request content type>
//	Body: raw file bytes
//
// where {base} is https://{host}/api/now/v1 as derived by
// [Connection.BaseURL]. The response envelope is {"result": {...}}; the
// result member is returned to the caller unmodified.
//
// There is no retry, pagination, or client-side rate limiting: a failed
// upload is surfaced immediately and the caller decides what to do with it.
// Cancellation and deadlines come from the caller's context.
//
// # Thread Safety
//
// The Client is safe for concurrent use. Each UploadAttachment call carries
// its own resolved Connection, so goroutines uploading against different
// instances can share one Client.
package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aberwag/snattach/internal/observability"
)

// Client uploads attachments to ServiceNow records.
// All methods are safe for concurrent use.
type Client interface {
	// UploadAttachment attaches req.Contents to the record identified by
	// req.Table and req.TableSysID, authenticating with the resolved
	// connection. It returns the attachment metadata from the response.
	UploadAttachment(ctx context.Context, conn Connection, req AttachmentRequest) (AttachmentResult, error)
}

// httpClient is the concrete implementation of the Client interface.
type httpClient struct {
	http   *http.Client
	logger *slog.Logger
}

// ClientOption is a functional option for configuring the HTTP client.
type ClientOption func(*httpClient)

// WithTimeout sets the request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client entirely. Intended for
// callers that need custom TLS or proxy settings.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a new Attachment API client.
func NewClient(logger *slog.Logger, opts ...ClientOption) Client {
	c := &httpClient{
		logger: logger.With("component", "sn-client"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UploadAttachment performs the single POST against the Attachment API.
//
// The request is validated and the endpoint URL built before any network
// I/O. Query parameter order is fixed (table_name, table_sys_id, file_name)
// and every value is URL-escaped.
func (c *httpClient) UploadAttachment(ctx context.Context, conn Connection, req AttachmentRequest) (AttachmentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	reqURL := buildAttachmentURL(conn.BaseURL(), req)

	c.logger.Debug("uploading attachment",
		"table", req.Table,
		"table_sys_id", req.TableSysID,
		"file_name", req.FileName,
		"content_type", contentType,
		"size_bytes", len(req.Contents),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(req.Contents))
	if err != nil {
		return nil, fmt.Errorf("creating POST request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", conn.Credential.basicHeader())

	requestStart := time.Now()
	resp, err := c.http.Do(httpReq)
	observability.Metrics.UploadsTotal.WithLabelValues(req.Table).Inc()
	if err != nil {
		observability.Metrics.UploadErrorsTotal.WithLabelValues(req.Table, "transport").Inc()
		return nil, fmt.Errorf("uploading attachment: %w", err)
	}
	defer resp.Body.Close()
	observability.Metrics.UploadDuration.WithLabelValues(req.Table).Observe(time.Since(requestStart).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.Metrics.UploadErrorsTotal.WithLabelValues(req.Table, "read_body").Inc()
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.Metrics.UploadErrorsTotal.WithLabelValues(req.Table, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// Parse the single-object response: {"result": {...}}
	var envelope struct {
		Result AttachmentResult `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		observability.Metrics.UploadErrorsTotal.WithLabelValues(req.Table, "malformed").Inc()
		return nil, fmt.Errorf("%w: parsing response JSON: %v (body: %.200s)", ErrMalformedResponse, err, string(body))
	}
	if envelope.Result == nil {
		observability.Metrics.UploadErrorsTotal.WithLabelValues(req.Table, "malformed").Inc()
		return nil, fmt.Errorf("%w: response has no result member (body: %.200s)", ErrMalformedResponse, string(body))
	}

	observability.Metrics.UploadedBytesTotal.WithLabelValues(req.Table).Add(float64(len(req.Contents)))
	c.logger.Info("attachment uploaded",
		"table", req.Table,
		"table_sys_id", req.TableSysID,
		"file_name", req.FileName,
		"attachment_sys_id", envelope.Result["sys_id"],
	)

	return envelope.Result, nil
}

// Upload resolves cfg and performs one upload with a default client. It is
// the package-level convenience entry point; library callers that upload
// repeatedly should build a Client once instead.
func Upload(ctx context.Context, cfg ConnectionConfig, req AttachmentRequest, logger *slog.Logger) (AttachmentResult, error) {
	conn, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(logger).UploadAttachment(ctx, conn, req)
}

// buildAttachmentURL constructs the upload endpoint. The Attachment API
// expects table_name, table_sys_id, and file_name in the query string;
// parameter order is kept stable and values are escaped with net/url.
func buildAttachmentURL(base string, req AttachmentRequest) string {
	return fmt.Sprintf("%s/attachment/file?table_name=%s&table_sys_id=%s&file_name=%s",
		base,
		url.QueryEscape(req.Table),
		url.QueryEscape(req.TableSysID),
		url.QueryEscape(req.FileName),
	)
}
