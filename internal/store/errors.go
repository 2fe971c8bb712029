// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"errors"
	"fmt"

	"github.com/memvault/memvault/internal/policy"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a row is absent OR when the caller is
// not its owner. The two cases are deliberately indistinguishable so
// that existence of another user's data never leaks.
var ErrNotFound = errors.New("not found")

// ValidationError reports a rejected payload before any write
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// translate maps lookup and predicate failures onto the store's public
// taxonomy. Anything else passes through wrapped by the caller.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, policy.ErrDenied):
		return ErrNotFound
	default:
		return err
	}
}
