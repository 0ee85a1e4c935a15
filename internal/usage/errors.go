package usage

import "fmt"

// AuthError reports that the endpoint rejected the bearer token (HTTP 401).
// Validity is judged entirely by the endpoint; there is no local refresh.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return "token expired or invalid; log out and back in with the Claude Code CLI (claude logout && claude)"
}

// UnexpectedResponseError carries the raw status and a truncated body for any
// non-2xx, non-401 status or an unparsable success body.
type UnexpectedResponseError struct {
	Status int
	Body   string
}

func (e *UnexpectedResponseError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("unexpected usage response: %s", e.Body)
	}
	return fmt.Sprintf("usage endpoint returned HTTP %d: %s", e.Status, e.Body)
}
