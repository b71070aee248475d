// identity.go -- Identity service boundary and shared types.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyIdentifier is returned by Validate when neither field is set.
var ErrEmptyIdentifier = errors.New("identifier has neither user_token nor user_id")

// ErrAmbiguousIdentifier is returned by Validate when both fields are set.
var ErrAmbiguousIdentifier = errors.New("identifier must set exactly one of user_token or user_id")

// UserTokenIdentifier tells the identity service whose token a 3LO flow is authorizing.
// Opaque to the coordinator beyond the presence check in Validate.
type UserTokenIdentifier struct {
	UserToken string `json:"user_token,omitempty"` // the agent user's inbound access token
	UserID    string `json:"user_id,omitempty"`
}

// Normalize returns a copy with surrounding whitespace trimmed from both fields.
// A whitespace-only field becomes empty, i.e. absent.
func (u UserTokenIdentifier) Normalize() UserTokenIdentifier {
	return UserTokenIdentifier{
		UserToken: strings.TrimSpace(u.UserToken),
		UserID:    strings.TrimSpace(u.UserID),
	}
}

// Validate checks that exactly one of UserToken or UserID is present after Normalize.
// Shape beyond that is the identity service's concern.
func (u UserTokenIdentifier) Validate() error {
	n := u.Normalize()
	switch {
	case n.UserToken == "" && n.UserID == "":
		return ErrEmptyIdentifier
	case n.UserToken != "" && n.UserID != "":
		return ErrAmbiguousIdentifier
	}
	return nil
}

// Kind returns "user_token" or "user_id" for logging, using the same presence test
// as Validate. Never log the value itself.
func (u UserTokenIdentifier) Kind() string {
	if u.Normalize().UserToken != "" {
		return "user_token"
	}
	return "user_id"
}

// Service finalizes resource-token authorization on the remote identity service.
// Implemented by *Client; tests substitute testutil.MockIdentity.
type Service interface {
	// CompleteResourceTokenAuth marks the 3LO flow identified by sessionURI as authorized
	// for the user named by id. Blocks until the identity service answers.
	CompleteResourceTokenAuth(ctx context.Context, sessionURI string, id UserTokenIdentifier) error
}
