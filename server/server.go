package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/claims"
	"github.com/meikuraledutech/chartflow/ctxlog"
	"github.com/meikuraledutech/chartflow/navigator"
	"github.com/meikuraledutech/chartflow/versions"
)

type server struct {
	store    chartflow.Store
	versions *versions.Service
	nav      *navigator.Navigator
	claims   *claims.Service
	sessions *registry
	auth     Authenticator
	logger   *slog.Logger
	gatherer prometheus.Gatherer

	claimText    string
	claimTimeout time.Duration
}

// Authenticator identifies the user making a request.
type Authenticator interface {
	UserID(c fiber.Ctx) (string, bool)
}

// headerAuth trusts a user id set by an upstream proxy.
type headerAuth struct{ header string }

func (h headerAuth) UserID(c fiber.Ctx) (string, bool) {
	id := c.Get(h.header)
	return id, id != ""
}

const userKey = "userID"

func (s *server) routes() *fiber.App {
	app := fiber.New()
	app.Use(s.requestLogger)

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := s.store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := s.store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	s.editorRoutes(app)
	s.questionnaireRoutes(app)
	s.claimRoutes(app)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return app
}

// requestLogger puts a request-scoped logger into the request context.
func (s *server) requestLogger(c fiber.Ctx) error {
	start := time.Now()
	logger := s.logger.With("method", c.Method(), "path", c.Path())
	c.SetContext(ctxlog.WithLogger(c.Context(), logger))

	err := c.Next()
	logger.Debug("request", "status", c.Response().StatusCode(), "duration", time.Since(start))
	return err
}

// requireUser rejects unauthenticated requests before any handler runs.
func (s *server) requireUser(c fiber.Ctx) error {
	id, ok := s.auth.UserID(c)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": claims.ErrUnauthenticated.Error()})
	}
	c.Locals(userKey, id)
	return c.Next()
}

func userID(c fiber.Ctx) string {
	return fiber.Locals[string](c, userKey)
}

// fail writes err with the status its sentinel maps to.
func fail(c fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == 500 {
		ctxlog.FromContext(c.Context()).Error("request failed", "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, claims.ErrUnauthenticated):
		return 401
	case errors.Is(err, chartflow.ErrChartNotFound),
		errors.Is(err, chartflow.ErrNodeNotFound),
		errors.Is(err, chartflow.ErrEdgeNotFound),
		errors.Is(err, chartflow.ErrVersionNotFound),
		errors.Is(err, claims.ErrNotFound),
		errors.Is(err, errSessionNotFound):
		return 404
	case errors.Is(err, chartflow.ErrDuplicateName),
		errors.Is(err, versions.ErrNodeExists),
		errors.Is(err, navigator.ErrTerminal):
		return 409
	case errors.Is(err, versions.ErrPublishRejected),
		errors.Is(err, navigator.ErrNoNextStep),
		errors.Is(err, navigator.ErrAutoAdvanceLoop),
		errors.Is(err, navigator.ErrNoCharts):
		return 422
	case errors.Is(err, versions.ErrEmptyName),
		errors.Is(err, versions.ErrInvalidNode),
		errors.Is(err, versions.ErrInvalidVariable),
		errors.Is(err, navigator.ErrUnknownChoice),
		errors.Is(err, claims.ErrInvalidClaim):
		return 400
	case errors.Is(err, versions.ErrClosed):
		return 503
	}
	return 500
}
