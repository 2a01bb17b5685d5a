package imgcompare

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecode marks every [DecodeError].
	ErrDecode = errors.New("image decode error")
	// ErrIncompleteRequest marks a comparison attempted with an empty slot.
	ErrIncompleteRequest = errors.New("incomplete comparison request")
	// ErrInvalidSlot is returned for a slot other than [SlotA] or [SlotB].
	ErrInvalidSlot = errors.New("invalid image slot")
	// ErrImageTooLarge is wrapped by a DecodeError for images over
	// Parameters.MaxPixels.
	ErrImageTooLarge = errors.New("image too large")
)

// DecodeError reports an image blob that could not be parsed. It is terminal
// for the request that produced it.
type DecodeError struct {
	Slot  Slot
	Label string
	Err   error
}

func (e *DecodeError) Error() string {
	label := strings.TrimSpace(e.Label)
	if label == "" {
		return fmt.Sprintf("decode image %s: %v", e.Slot, e.Err)
	}
	return fmt.Sprintf("decode image %s (%q): %v", e.Slot, label, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDecode) match any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// IncompleteRequestError names the slots that were empty when a comparison
// was attempted.
type IncompleteRequestError struct {
	Missing []Slot
}

func (e *IncompleteRequestError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, s := range e.Missing {
		names = append(names, s.String())
	}
	return fmt.Sprintf("%v: missing %s", ErrIncompleteRequest, strings.Join(names, ", "))
}

func (e *IncompleteRequestError) Is(target error) bool { return target == ErrIncompleteRequest }
