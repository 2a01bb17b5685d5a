// Package server exposes the comparison engine over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/xswordsx/imgcompare"
	"github.com/xswordsx/imgcompare/internal/logging"
)

const (
	headerRequestID = "X-Request-ID"
	localsRequestID = "request_id"
	mimeCBOR        = "application/cbor"
)

// Options configures a Server. Zero values take defaults.
type Options struct {
	BodyLimit      int           // bytes; 20 MiB when zero
	RequestTimeout time.Duration // 30s when zero
	Classifier     imgcompare.LabelClassifier
	Logger         *slog.Logger
}

// Server is the HTTP front end. Every comparison request runs in its own
// [imgcompare.Session]; nothing is shared between requests.
type Server struct {
	app        *fiber.App
	cmp        imgcompare.Comparer
	classifier imgcompare.LabelClassifier
	timeout    time.Duration
	log        *slog.Logger
}

// New builds the fiber app and registers routes.
func New(cmp imgcompare.Comparer, opts Options) *Server {
	s := &Server{
		cmp:        cmp,
		classifier: opts.Classifier,
		timeout:    opts.RequestTimeout,
		log:        logging.NewComponentLogger(opts.Logger, "server"),
	}
	if s.classifier == nil {
		s.classifier = imgcompare.DefaultClassifier
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 20 << 20
	}

	s.app = fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(s.requestID)
	s.app.Use(s.accessLog)
	s.app.Use(cors.New())

	s.app.Get("/health", s.health)
	s.app.Get("/classify", s.classify)
	s.app.Post("/compare", s.compareMultipart)
	s.app.Post("/compare/base64", s.compareBase64)

	return s
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("server starting", "bind", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestID(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Get(headerRequestID))
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals(localsRequestID, id)
	c.Set(headerRequestID, id)
	return c.Next()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	// Errors are rendered here rather than by the app so the logged status
	// is the one the client sees.
	if err := c.Next(); err != nil {
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}
	s.log.Info("request",
		"request_id", requestIDOf(c),
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"elapsed", time.Since(start),
	)
	return nil
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localsRequestID).(string)
	return id
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) classify(c *fiber.Ctx) error {
	label := c.Query("label")
	if strings.TrimSpace(label) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "label query parameter is required")
	}
	return s.respond(c, fiber.StatusOK, ClassifyResponse{
		Label:       label,
		Normalized:  imgcompare.NormalizeLabel(label),
		SpecialCase: s.classifier.Classify(label),
	})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	kind := "internal"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		kind = "request"
	case errors.Is(err, imgcompare.ErrDecode):
		code = fiber.StatusUnprocessableEntity
		kind = "decode"
	case errors.Is(err, imgcompare.ErrIncompleteRequest):
		code = fiber.StatusBadRequest
		kind = "incomplete"
	case errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusGatewayTimeout
		kind = "timeout"
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", "request_id", requestIDOf(c), "error", err)
	}
	return s.respond(c, code, ErrorResponse{
		RequestID: requestIDOf(c),
		Kind:      kind,
		Error:     err.Error(),
	})
}
