package imaging

import (
	"errors"
	"fmt"
)

// ErrEmptyImage is returned when a decoded image has no pixels.
var ErrEmptyImage = errors.New("image has zero width or height")

// DecodeError reports a failure to turn input bytes into pixels.
type DecodeError struct {
	Mime string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Mime == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Mime, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IncompleteImageWarning flags a canvas whose foreground covers fewer than two
// quadrants. It accompanies a valid result and should only be logged.
type IncompleteImageWarning struct {
	Quadrants int // quadrants with at least one bright sample
}

func (w *IncompleteImageWarning) Error() string {
	return fmt.Sprintf("image looks incomplete: foreground in %d of 4 quadrants", w.Quadrants)
}
