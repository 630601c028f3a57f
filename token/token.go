// Package token implements the two token kinds the gateway's authentication
// schemes deal in: signed JWTs presented by callers, and the opaque
// reference tokens the phantom-token exchange hands back in their place.
package token

import (
	"errors"
	"fmt"
)

type (
	// Token is anything that can render itself back to wire form.
	Token = fmt.Stringer

	Issuer interface {
		Issue() (Token, error)
	}

	Parser interface {
		Parse(string) (Token, error)
	}
)

var ErrTokenInvalid = errors.New("token is invalid")
