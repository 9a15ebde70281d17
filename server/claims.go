package main

import (
	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/chartflow/claims"
)

func (s *server) claimRoutes(app *fiber.App) {
	// ── Claims ────────────────────────────────────────────────────────
	g := app.Group("/claims", s.requireUser)

	g.Post("/", func(c fiber.Ctx) error {
		var req claims.CreateRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		created, err := s.claims.Create(c.Context(), userID(c), req)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(created)
	})

	g.Get("/", func(c fiber.Ctx) error {
		list, err := s.claims.List(c.Context(), userID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(list)
	})

	g.Put("/", func(c fiber.Ctx) error {
		var req claims.UpdateRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		updated, err := s.claims.Update(c.Context(), userID(c), req)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(updated)
	})
}
