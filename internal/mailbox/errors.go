package mailbox

import (
	"errors"
	"fmt"
)

// UpstreamError is a non-2xx response from the mailbox provider. The status
// and body are preserved so callers can surface them verbatim.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("mailbox upstream error: status %d: %s", e.Status, e.Body)
}

// AsUpstream unwraps err into an *UpstreamError if one is in the chain.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
