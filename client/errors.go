package client

import "fmt"

// TurnErrorKind classifies why a turn failed.
type TurnErrorKind string

const (
	ErrorNetworkFailure      TurnErrorKind = "NETWORK_FAILURE"
	ErrorUpstreamRateLimited TurnErrorKind = "UPSTREAM_RATE_LIMITED"
	ErrorUpstreamBilling     TurnErrorKind = "UPSTREAM_BILLING"
	ErrorUpstreamGeneric     TurnErrorKind = "UPSTREAM_GENERIC"
	ErrorTimeout             TurnErrorKind = "TIMEOUT"
	ErrorMalformedStream     TurnErrorKind = "MALFORMED_STREAM"
)

const (
	msgConnection      = "Erreur de connexion. Réessayez."
	msgTimeout         = "Délai de réponse dépassé. Veuillez simplifier votre question."
	msgServiceFallback = "Erreur du service"
	msgNetwork         = "Erreur réseau"

	errorPrefix = "⚠️ "
)

// TurnError reports a failed turn. Message is the user-facing text that was
// appended to the transcript.
type TurnError struct {
	Kind    TurnErrorKind
	Message string
	Err     error
}

func (e *TurnError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("client: %s (%s)", e.Kind, e.Message)
	}
	return fmt.Sprintf("client: %s (%s): %v", e.Kind, e.Message, e.Err)
}

func (e *TurnError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newTurnError(kind TurnErrorKind, message string, err error) *TurnError {
	return &TurnError{Kind: kind, Message: message, Err: err}
}
