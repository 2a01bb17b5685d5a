package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/xswordsx/imgcompare"
)

// ClassifyResponse reports the override verdict for a label.
type ClassifyResponse struct {
	Label       string `json:"label" cbor:"label"`
	Normalized  string `json:"normalized" cbor:"normalized"`
	SpecialCase bool   `json:"special_case" cbor:"special_case"`
}

// CompareResponse is returned by both compare endpoints.
type CompareResponse struct {
	RequestID    string  `json:"request_id" cbor:"request_id"`
	Score        float64 `json:"score" cbor:"score"`
	Mismatch     float64 `json:"mismatch" cbor:"mismatch"`
	Label        string  `json:"label" cbor:"label"`
	Message      string  `json:"message" cbor:"message"`
	SpecialCase  bool    `json:"special_case" cbor:"special_case"`
	Width        int     `json:"width" cbor:"width"`
	Height       int     `json:"height" cbor:"height"`
	PixelsFailed uint64  `json:"pixels_failed" cbor:"pixels_failed"`
	Elapsed      string  `json:"elapsed" cbor:"elapsed"`

	// JSON clients get a data URL; CBOR clients get the raw PNG bytes.
	DiffImage string `json:"diff_image,omitempty" cbor:"-"`
	DiffPNG   []byte `json:"-" cbor:"diff_png,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	RequestID string `json:"request_id" cbor:"request_id"`
	Kind      string `json:"kind" cbor:"kind"`
	Error     string `json:"error" cbor:"error"`
}

// Base64Request carries both images as base64 strings or data URLs.
type Base64Request struct {
	ImageA string `json:"image_a"`
	ImageB string `json:"image_b"`
	LabelA string `json:"label_a"`
	LabelB string `json:"label_b"`
}

func (s *Server) compareMultipart(c *fiber.Ctx) error {
	a, err := formImage(c, "image_a", "label_a")
	if err != nil {
		return err
	}
	b, err := formImage(c, "image_b", "label_b")
	if err != nil {
		return err
	}
	return s.runCompare(c, a, b)
}

func formImage(c *fiber.Ctx, field, labelField string) (imgcompare.Image, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return imgcompare.Image{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("multipart field %q is required", field))
	}
	blob, err := readFormFile(fh)
	if err != nil {
		return imgcompare.Image{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("read %s: %v", field, err))
	}
	label := c.FormValue(labelField)
	if strings.TrimSpace(label) == "" {
		label = fh.Filename
	}
	return imgcompare.Image{Blob: blob, Label: label}, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) compareBase64(c *fiber.Ctx) error {
	var req Base64Request
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.ImageA == "" || req.ImageB == "" {
		return fiber.NewError(fiber.StatusBadRequest, "both image_a and image_b are required")
	}
	blobA, err := decodeDataURL(req.ImageA)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "image_a: "+err.Error())
	}
	blobB, err := decodeDataURL(req.ImageB)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "image_b: "+err.Error())
	}
	return s.runCompare(c,
		imgcompare.Image{Blob: blobA, Label: req.LabelA},
		imgcompare.Image{Blob: blobB, Label: req.LabelB},
	)
}

// decodeDataURL accepts "data:image/...;base64,<payload>" or bare base64.
func decodeDataURL(value string) ([]byte, error) {
	payload := strings.TrimSpace(value)
	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		if !strings.HasPrefix(meta, "data:image/") {
			return nil, fmt.Errorf("unsupported media type %q", strings.TrimPrefix(meta, "data:"))
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("data URL is not base64 encoded")
		}
		payload = data
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return decoded, nil
}

type compareOutcome struct {
	res imgcompare.Result
	err error
}

func (s *Server) runCompare(c *fiber.Ctx, a, b imgcompare.Image) error {
	start := time.Now()
	requestID := requestIDOf(c)
	log := s.log.With("request_id", requestID)

	session := imgcompare.NewSession(s.cmp, imgcompare.SessionOptions{
		Classifier: s.classifier,
		Logger:     log,
	})
	done := make(chan compareOutcome, 1)
	session.OnResult(func(res imgcompare.Result, err error) {
		done <- compareOutcome{res, err}
	})

	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()

	if err := session.SubmitImage(imgcompare.SlotA, a.Blob, a.Label); err != nil {
		return err
	}
	if err := session.SubmitImage(imgcompare.SlotB, b.Blob, b.Label); err != nil {
		return err
	}

	var out compareOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		session.Reset()
		return fmt.Errorf("compare %q with %q: %w", a.Label, b.Label, ctx.Err())
	}
	if out.err != nil {
		return out.err
	}

	resp := CompareResponse{
		RequestID:    requestID,
		Score:        out.res.Score,
		Mismatch:     out.res.Mismatch,
		Label:        out.res.Label,
		Message:      out.res.Message(),
		SpecialCase:  out.res.Override,
		Width:        out.res.Width,
		Height:       out.res.Height,
		PixelsFailed: out.res.PixelsFailed,
		Elapsed:      time.Since(start).String(),
	}
	if out.res.Diff != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, out.res.Diff); err != nil {
			return fmt.Errorf("encode diff image: %w", err)
		}
		if wantsCBOR(c) {
			resp.DiffPNG = buf.Bytes()
		} else {
			resp.DiffImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	log.Info("compare finished", "score", resp.Score, "label", resp.Label, "special_case", resp.SpecialCase)
	return s.respond(c, fiber.StatusOK, resp)
}

func wantsCBOR(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), mimeCBOR)
}

func (s *Server) respond(c *fiber.Ctx, status int, v any) error {
	if !wantsCBOR(c) {
		return c.Status(status).JSON(v)
	}
	data, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cbor response: %w", err)
	}
	c.Set(fiber.HeaderContentType, mimeCBOR)
	return c.Status(status).Send(data)
}
