// Package servicenow provides types and utilities for interacting with the ServiceNow Attachment API.
package servicenow

import (
	"errors"
	"fmt"
)

// Record represents a ServiceNow object as a map of field names to values.
type Record map[string]interface{}

// AttachmentResult is the attachment metadata returned by the Attachment API.
// The schema is owned by ServiceNow and passed through unmodified.
type AttachmentResult = Record

// AttachmentRequest describes one file to attach to a record.
type AttachmentRequest struct {
	// Table is the target table name, e.g. "change_request".
	Table string
	// TableSysID is the sys_id of the record the file is attached to.
	TableSysID string
	// FileName is the attachment file name as it will appear in ServiceNow.
	FileName string
	// Contents is the raw file payload.
	Contents []byte
	// ContentType is the MIME type sent with the upload. Empty means
	// DefaultContentType.
	ContentType string
}

// DefaultContentType is used when AttachmentRequest.ContentType is empty.
const DefaultContentType = "application/octet-stream"

// Validate checks that every required field is present.
func (r AttachmentRequest) Validate() error {
	switch {
	case r.Table == "":
		return errors.New("attachment request: table is required")
	case r.TableSysID == "":
		return errors.New("attachment request: table sys_id is required")
	case r.FileName == "":
		return errors.New("attachment request: file name is required")
	case len(r.Contents) == 0:
		return errors.New("attachment request: file contents must not be empty")
	}
	return nil
}

// ErrAuthNotConfigured is returned when no connection variant can be
// resolved. It is always raised before any network call is made.
var ErrAuthNotConfigured = errors.New("servicenow: no credentials configured; supply an automation connection, an explicit credential and host, or store auth state first")

// ErrMalformedResponse is returned when the response body is not valid JSON
// or does not carry a "result" member.
var ErrMalformedResponse = errors.New("servicenow: malformed response")

// HTTPError is returned for any non-2xx response. The body is carried
// verbatim so callers can inspect the ServiceNow error detail.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("servicenow: request failed with status %d: %s", e.StatusCode, truncateBody([]byte(e.Body)))
}

// ErrorResponse represents a ServiceNow API error response body.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"error"`
}

// truncateBody returns the first 500 bytes of a response body for logging.
func truncateBody(body []byte) string {
	if len(body) > 500 {
		return string(body[:500]) + "..."
	}
	return string(body)
}
