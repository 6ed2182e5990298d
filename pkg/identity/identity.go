// Package identity supplies the user identity attached to every backend call.
//
// The backend keys uploads and queries by an email-shaped string. Nothing in
// this module authenticates that value; an auth layer can plug in by
// implementing Provider.
package identity

import (
	"context"
	"errors"
	"strings"
)

var ErrNoIdentity = errors.New("no user identity available")

type Provider interface {
	Identity(ctx context.Context) (string, error)
}

// Static always returns the same identity.
type Static string

func (s Static) Identity(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context) (string, error)

func (f Func) Identity(ctx context.Context) (string, error) {
	return f(ctx)
}
