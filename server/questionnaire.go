package main

import (
	"context"
	"net/url"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/claims"
	"github.com/meikuraledutech/chartflow/ctxlog"
	"github.com/meikuraledutech/chartflow/navigator"
)

// questionView is what a client renders for a cursor.
type questionView struct {
	ID       string              `json:"id,omitempty"`
	Location string              `json:"location"`
	Done     bool                `json:"done"`
	Score    float64             `json:"score"`
	Claim    string              `json:"claim"`
	Question *navigator.Question `json:"question,omitempty"`
	Choices  []chartflow.Option  `json:"choices,omitempty"`
}

type startRequest struct {
	Chart    string `json:"chart"`
	Question string `json:"question"`
	Claim    string `json:"claim"`
	Version  int    `json:"version"`
}

type answerRequest struct {
	Selected []string `json:"selected"`
}

type claimRequest struct {
	Claim string `json:"claim"`
}

func (s *server) view(cur navigator.Cursor) (questionView, error) {
	v := questionView{
		Location: cur.Location().String(),
		Done:     cur.Done(),
		Score:    cur.Score,
		Claim:    cur.Claim,
	}
	if cur.Done() {
		return v, nil
	}
	q, err := s.nav.Current(cur)
	if err != nil {
		return v, err
	}
	v.Question = &q
	v.Choices = q.Choices()
	return v, nil
}

// sessionView renders sess. The caller holds sess.mu.
func (s *server) sessionView(id string, sess *session) (questionView, error) {
	sess.cursor.Claim = sess.claim.Text()
	v, err := s.view(sess.cursor)
	v.ID = id
	return v, err
}

func (s *server) questionnaireRoutes(app *fiber.App) {
	// ── Addressable questionnaire ─────────────────────────────────────
	// The URL is the whole state: chart, question, claim and an optional
	// version. Locations that do not resolve redirect to the corrected one.
	app.Get("/questionnaire", func(c fiber.Ctx) error {
		q, err := url.ParseQuery(string(c.Request().URI().QueryString()))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid query"})
		}
		loc := navigator.ParseLocation(q)
		res, err := s.nav.Resume(c.Context(), loc)
		if err != nil {
			return fail(c, err)
		}
		if !res.Cursor.Done() && res.Cursor.Location() != loc {
			return c.Redirect().Status(303).To("/questionnaire?" + res.Cursor.Location().String())
		}
		v, err := s.view(res.Cursor)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(v)
	})

	// ── Sessions ──────────────────────────────────────────────────────
	app.Post("/sessions", func(c fiber.Ctx) error {
		var req startRequest
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&req); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		logger := ctxlog.FromContext(c.Context())
		tracker := claims.NewTracker(s.claimText, s.claimTimeout, logger)
		if req.Claim != "" {
			tracker.Set(req.Claim)
		} else if uid, ok := s.auth.UserID(c); ok {
			// The fetch outlives the request.
			fetchCtx := ctxlog.WithLogger(context.Background(), logger)
			tracker.Refresh(fetchCtx, func(ctx context.Context) (string, error) {
				return s.claims.Latest(ctx, uid)
			})
		}

		res, err := s.nav.Resume(c.Context(), navigator.Location{
			Chart:    req.Chart,
			Question: req.Question,
			Claim:    tracker.Text(),
			Version:  req.Version,
		})
		if err != nil {
			return fail(c, err)
		}

		sess := &session{cursor: res.Cursor, claim: tracker}
		id := s.sessions.add(sess)
		sess.mu.Lock()
		defer sess.mu.Unlock()
		v, err := s.sessionView(id, sess)
		if err != nil {
			return fail(c, err)
		}
		if res.Cursor.Done() {
			s.sessions.remove(id)
		}
		return c.Status(201).JSON(v)
	})

	app.Get("/sessions/:id", func(c fiber.Ctx) error {
		id := c.Params("id")
		sess, err := s.sessions.get(id)
		if err != nil {
			return fail(c, err)
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		v, err := s.sessionView(id, sess)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(v)
	})

	app.Post("/sessions/:id/answers", func(c fiber.Ctx) error {
		var req answerRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		id := c.Params("id")
		sess, err := s.sessions.get(id)
		if err != nil {
			return fail(c, err)
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()

		next, err := s.nav.Answer(c.Context(), sess.cursor, req.Selected...)
		if err != nil {
			// The session stays where it was.
			current, _ := s.sessionView(id, sess)
			return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error(), "current": current})
		}
		sess.cursor = next
		v, err := s.sessionView(id, sess)
		if err != nil {
			return fail(c, err)
		}
		if next.Done() {
			s.sessions.remove(id)
		}
		return c.JSON(v)
	})

	app.Put("/sessions/:id/claim", func(c fiber.Ctx) error {
		var req claimRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		id := c.Params("id")
		sess, err := s.sessions.get(id)
		if err != nil {
			return fail(c, err)
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.claim.Set(req.Claim)
		v, err := s.sessionView(id, sess)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(v)
	})

	app.Delete("/sessions/:id", func(c fiber.Ctx) error {
		if !s.sessions.remove(c.Params("id")) {
			return fail(c, errSessionNotFound)
		}
		return c.SendStatus(204)
	})
}
