package imgcompare

import (
	"context"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	LabelSpecialCase   = "special case"
	LabelHighlySimilar = "highly similar"
	LabelLowSimilarity = "low similarity"
)

// Result is the outcome of one comparison.
type Result struct {
	Score    float64 `json:"score" cbor:"score"`       // Similarity, 0-100, two decimals.
	Mismatch float64 `json:"mismatch" cbor:"mismatch"` // Percentage of mismatched pixels.
	Label    string  `json:"label" cbor:"label"`
	Override bool    `json:"override" cbor:"override"`

	// Grid size and failed pixel count. Zero on the override path.
	Width        int    `json:"width" cbor:"width"`
	Height       int    `json:"height" cbor:"height"`
	PixelsFailed uint64 `json:"pixels_failed" cbor:"pixels_failed"`

	// Nil on the override path.
	Diff *image.NRGBA `json:"-" cbor:"-"`
}

// Message is the sentence shown to a user alongside the score.
func (r Result) Message() string {
	switch r.Label {
	case LabelSpecialCase:
		return "Special case: 100% match!"
	case LabelHighlySimilar:
		return "These images are highly similar!"
	default:
		return "These images have low similarity."
	}
}

// Comparer runs a single comparison. [Engine] is the production
// implementation; [Session] accepts any Comparer.
type Comparer interface {
	Compare(ctx context.Context, a, b *Image, override bool) (Result, error)
}

// Engine decodes and measures image pairs. The zero value uses
// [DefaultParameters] and discards logs. An Engine holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	Params *Parameters
	Logger *slog.Logger
}

// NewEngine returns an engine with the given parameters.
func NewEngine(params Parameters, logger *slog.Logger) *Engine {
	return &Engine{Params: &params, Logger: logger}
}

func (e *Engine) params() Parameters {
	if e == nil || e.Params == nil {
		return DefaultParameters
	}
	return *e.Params
}

func (e *Engine) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

// Compare scores a against b. With override set it returns a perfect
// special-case result without decoding either image. Otherwise both images
// are decoded concurrently, and a decode failure is returned as a
// [*DecodeError] with no result.
func (e *Engine) Compare(ctx context.Context, a, b *Image, override bool) (Result, error) {
	if err := requireBoth(a, b); err != nil {
		return Result{}, err
	}
	log := e.logger()

	if override {
		log.Debug("special case override", "label_a", a.Label)
		return Result{Score: 100, Label: LabelSpecialCase, Override: true}, nil
	}

	start := time.Now()
	params := e.params()
	var (
		images [2]image.Image
		errs   [2]error
	)
	wg := sync.WaitGroup{}
	for i, img := range [2]*Image{a, b} {
		wg.Add(1)
		go func(i int, img *Image) {
			defer wg.Done()
			var format string
			images[i], format, errs[i] = Decode(Slot(i), img, params.MaxPixels)
			if errs[i] == nil {
				bounds := images[i].Bounds()
				log.Debug("decoded image",
					"slot", Slot(i).String(),
					"label", img.Label,
					"format", format,
					"width", bounds.Dx(),
					"height", bounds.Dy(),
				)
			}
		}(i, img)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Result{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	analysis := Measure(images[0], images[1], params)
	res := Result{
		Score:        analysis.Score(),
		Mismatch:     analysis.Mismatch,
		Width:        analysis.Width,
		Height:       analysis.Height,
		PixelsFailed: analysis.NumPixelsFailed,
		Diff:         analysis.ImageDifference,
	}
	res.Label = labelFor(res.Score, params.SimilarAbove)

	log.Info("comparison complete",
		"label_a", a.Label,
		"label_b", b.Label,
		"score", res.Score,
		"pixels_failed", res.PixelsFailed,
		"grid", [2]int{res.Width, res.Height},
		"elapsed", time.Since(start),
	)
	return res, nil
}

func labelFor(score, similarAbove float64) string {
	if score > similarAbove {
		return LabelHighlySimilar
	}
	return LabelLowSimilarity
}

func requireBoth(a, b *Image) error {
	var missing []Slot
	if a == nil {
		missing = append(missing, SlotA)
	}
	if b == nil {
		missing = append(missing, SlotB)
	}
	if len(missing) > 0 {
		return &IncompleteRequestError{Missing: missing}
	}
	return nil
}
