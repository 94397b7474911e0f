// Package errors provides error wrapping for context-aware error messages.
package errors

import "fmt"

// Wrap annotates err with context, keeping it matchable with errors.Is.
// A nil err stays nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
