package models

import "errors"

// Error kinds shared by every engine component. Wrap them with fmt.Errorf
// and %w and classify with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrIO              = errors.New("io failure")
	ErrDecode          = errors.New("decode failure")
	ErrStore           = errors.New("store failure")
	ErrCancelled       = errors.New("cancelled")
)

// Result is the record form of an operation outcome.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ResultFrom converts an error into a Result.
func ResultFrom(err error) Result {
	if err == nil {
		return Result{OK: true}
	}
	return Result{OK: false, Message: err.Error()}
}
