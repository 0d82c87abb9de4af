// Package knack implements the Knack REST API client used to read profile,
// staff and results records.
package knack

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPES
// ══════════════════════════════════════════════════════════════════════════════

// RecordsPage is one page of the records listing endpoint.
type RecordsPage struct {
	Records      []json.RawMessage
	CurrentPage  int
	TotalPages   int
	TotalRecords int
}

// parseRecordsPage reads the page envelope. Records are kept raw; field
// interpretation belongs to the normalizer.
func parseRecordsPage(body []byte) (*RecordsPage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	records := root.Get("records")
	if !records.IsArray() {
		return nil, fmt.Errorf("response has no records array")
	}

	page := &RecordsPage{
		CurrentPage:  int(root.Get("current_page").Int()),
		TotalPages:   int(root.Get("total_pages").Int()),
		TotalRecords: int(root.Get("total_records").Int()),
	}
	records.ForEach(func(_, rec gjson.Result) bool {
		if rec.IsObject() {
			page.Records = append(page.Records, json.RawMessage(rec.Raw))
		}
		return true
	})
	return page, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a non-success HTTP response from Knack.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("knack api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("knack api: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the status is worth retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 408
}

// parseAPIError extracts the message from either error body shape Knack
// returns: {"errors":[{"message":...}]} or {"message":...}.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if !gjson.ValidBytes(body) {
		return apiErr
	}
	if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() {
		apiErr.Message = msg.String()
	} else if msg := gjson.GetBytes(body, "message"); msg.Exists() {
		apiErr.Message = msg.String()
	}
	return apiErr
}
