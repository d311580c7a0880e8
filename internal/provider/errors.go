package provider

import "fmt"

// StatusError is a non-2xx HTTP response from a vendor endpoint. It exposes
// the status code so the retry layer can classify 429/5xx as transient.
type StatusError struct {
	ProviderID string
	Code       int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.ProviderID, e.Code, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d", e.ProviderID, e.Code)
}

func (e *StatusError) HTTPStatus() int { return e.Code }

// MalformedError is a structurally invalid vendor response. Never retried.
type MalformedError struct {
	ProviderID string
	Reason     string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.ProviderID, e.Reason)
}
