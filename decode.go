package imgcompare

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/spakin/netpbm"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Slot is a position in a comparison request.
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

func (s Slot) valid() bool { return s == SlotA || s == SlotB }

// Image is an encoded image blob and the label it was uploaded under
// (usually its file name).
type Image struct {
	Blob  []byte
	Label string
}

var errEmptyBlob = errors.New("empty image data")

// Decode parses img with whichever registered format matches its header.
// PNG, JPEG, GIF, BMP, TIFF, WebP and the netpbm family are registered.
// When maxPixels is positive the header is read first and images whose
// declared area exceeds it are rejected with [ErrImageTooLarge] before any
// pixel data is allocated.
func Decode(slot Slot, img *Image, maxPixels int64) (image.Image, string, error) {
	if img == nil || len(img.Blob) == 0 {
		var label string
		if img != nil {
			label = img.Label
		}
		return nil, "", &DecodeError{Slot: slot, Label: label, Err: errEmptyBlob}
	}
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Blob))
		if err != nil {
			return nil, "", &DecodeError{Slot: slot, Label: img.Label, Err: err}
		}
		if area := int64(cfg.Width) * int64(cfg.Height); area > maxPixels {
			return nil, "", &DecodeError{
				Slot:  slot,
				Label: img.Label,
				Err:   fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels),
			}
		}
	}
	decoded, format, err := image.Decode(bytes.NewReader(img.Blob))
	if err != nil {
		return nil, "", &DecodeError{Slot: slot, Label: img.Label, Err: err}
	}
	return decoded, format, nil
}
