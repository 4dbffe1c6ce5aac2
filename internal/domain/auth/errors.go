package auth

import "errors"

// ErrEmailExists indicates registration collided with an existing account.
var ErrEmailExists = errors.New("email already exists")
