// Package llm provides the wire and transcript types shared by the chat
// router and the streaming client.
package llm

// Error codes carried in ErrorResponse.Code so clients can classify failures
// without matching on the user-facing text.
const (
	CodeRateLimited   = "rate_limited"
	CodeBilling       = "billing"
	CodeUpstreamError = "upstream_error"
	CodeTimeout       = "timeout"
	CodeBadRequest    = "bad_request"
	CodeInternal      = "internal"
)

// ErrorResponse represents an error returned by the chat endpoint.
type ErrorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code,omitempty"`
	ResponseTime string `json:"responseTime,omitempty"`
}
