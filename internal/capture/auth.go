package capture

import (
	"crypto/subtle"
	"strings"
)

// Authorizer validates the grant token presented to Attach.
type Authorizer interface {
	Authorize(token string) error
}

// TokenAuthorizer accepts exactly Grant. With no Grant minted it accepts any
// non-empty token.
type TokenAuthorizer struct {
	Grant string
}

func (a TokenAuthorizer) Authorize(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrAuthorizationDenied
	}
	if a.Grant == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Grant)) != 1 {
		return ErrAuthorizationDenied
	}
	return nil
}
