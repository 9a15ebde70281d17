package main

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/navigator"
)

type chartRequest struct {
	Name string `json:"name"`
}

// chartPatch changes any subset of a chart's settings.
type chartPatch struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	OnePageMode *bool   `json:"onePageMode"`
}

type graphRequest struct {
	Nodes []chartflow.Node `json:"nodes"`
	Edges []chartflow.Edge `json:"edges"`
}

type publishRequest struct {
	Message string `json:"message"`
}

type variableRequest struct {
	Value string `json:"value"`
}

func (s *server) editorRoutes(app *fiber.App) {
	// ── Charts ────────────────────────────────────────────────────────
	app.Get("/charts", func(c fiber.Ctx) error {
		return c.JSON(s.versions.ListCharts())
	})

	app.Post("/charts", func(c fiber.Ctx) error {
		var req chartRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		ch, err := s.versions.AddChart(c.Context(), req.Name)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(ch)
	})

	app.Get("/charts/:chart", func(c fiber.Ctx) error {
		ch, err := s.versions.Chart(c.Params("chart"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(ch)
	})

	app.Patch("/charts/:chart", func(c fiber.Ctx) error {
		var req chartPatch
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		ch, err := s.versions.Chart(c.Params("chart"))
		if err != nil {
			return fail(c, err)
		}
		ctx := c.Context()
		if req.Name != nil {
			if err := s.versions.RenameChart(ctx, ch.ID, *req.Name); err != nil {
				return fail(c, err)
			}
		}
		if req.Color != nil {
			if err := s.versions.SetColor(ctx, ch.ID, *req.Color); err != nil {
				return fail(c, err)
			}
		}
		if req.OnePageMode != nil {
			if err := s.versions.SetOnePage(ctx, ch.ID, *req.OnePageMode); err != nil {
				return fail(c, err)
			}
		}
		ch, err = s.versions.Chart(ch.ID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(ch)
	})

	app.Delete("/charts/:chart", func(c fiber.Ctx) error {
		if err := s.versions.DeleteChart(c.Context(), c.Params("chart")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	app.Get("/active", func(c fiber.Ctx) error {
		ch, ok := s.versions.Active()
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "no active chart"})
		}
		return c.JSON(ch)
	})

	app.Put("/active/:chart", func(c fiber.Ctx) error {
		if err := s.versions.SetActive(c.Context(), c.Params("chart")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Graph ─────────────────────────────────────────────────────────
	app.Put("/charts/:chart/graph", func(c fiber.Ctx) error {
		var req graphRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		ref := c.Params("chart")
		if err := s.versions.ReplaceGraph(c.Context(), ref, req.Nodes, req.Edges); err != nil {
			return fail(c, err)
		}
		ch, err := s.versions.Chart(ref)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(ch)
	})

	app.Post("/charts/:chart/recompile", func(c fiber.Ctx) error {
		if err := s.versions.Recompile(c.Context(), c.Params("chart")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/charts/:chart/nodes", func(c fiber.Ctx) error {
		var node chartflow.Node
		if err := c.Bind().JSON(&node); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		added, err := s.versions.AddNode(c.Context(), c.Params("chart"), node)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(added)
	})

	app.Get("/charts/:chart/nodes/:node", func(c fiber.Ctx) error {
		ch, err := s.versions.Chart(c.Params("chart"))
		if err != nil {
			return fail(c, err)
		}
		n, ok := ch.Node(c.Params("node"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "node not found"})
		}
		return c.JSON(n)
	})

	app.Delete("/charts/:chart/nodes/:node", func(c fiber.Ctx) error {
		if err := s.versions.RemoveNode(c.Context(), c.Params("chart"), c.Params("node")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/charts/:chart/edges", func(c fiber.Ctx) error {
		var edge chartflow.Edge
		if err := c.Bind().JSON(&edge); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if edge.Source == "" || edge.Target == "" {
			return c.Status(400).JSON(fiber.Map{"error": "source and target are required"})
		}
		added, err := s.versions.Connect(c.Context(), c.Params("chart"), edge)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(added)
	})

	app.Delete("/charts/:chart/edges/:edge", func(c fiber.Ctx) error {
		if err := s.versions.Disconnect(c.Context(), c.Params("chart"), c.Params("edge")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Versions ──────────────────────────────────────────────────────
	app.Post("/charts/:chart/publish", func(c fiber.Ctx) error {
		var req publishRequest
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&req); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		v, err := s.versions.Publish(c.Context(), c.Params("chart"), req.Message)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(v)
	})

	app.Get("/charts/:chart/versions", func(c fiber.Ctx) error {
		list, err := s.versions.ListVersions(c.Params("chart"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(list)
	})

	app.Post("/charts/:chart/versions/:version/revert", func(c fiber.Ctx) error {
		v, err := strconv.Atoi(c.Params("version"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid version"})
		}
		ch, err := s.versions.Revert(c.Context(), c.Params("chart"), v)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(ch)
	})

	// ── Questions ─────────────────────────────────────────────────────
	app.Get("/questions", func(c fiber.Ctx) error {
		return c.JSON(s.nav.AllQuestions())
	})

	app.Get("/charts/:chart/questions", func(c fiber.Ctx) error {
		qs, err := s.nav.Questions(c.Params("chart"))
		if err != nil {
			return fail(c, err)
		}
		if qs == nil {
			qs = []navigator.Question{}
		}
		return c.JSON(qs)
	})

	// ── Variables ─────────────────────────────────────────────────────
	// Global variables use an empty chart ref.
	app.Get("/variables", s.listVariables(""))
	app.Put("/variables/:name", s.setVariable(""))
	app.Delete("/variables/:name", s.deleteVariable(""))
	app.Get("/charts/:chart/variables", s.listVariables("chart"))
	app.Put("/charts/:chart/variables/:name", s.setVariable("chart"))
	app.Delete("/charts/:chart/variables/:name", s.deleteVariable("chart"))
}

// chartParam reads the chart ref from param, or "" for the global scope.
func chartParam(c fiber.Ctx, param string) string {
	if param == "" {
		return ""
	}
	return c.Params(param)
}

func (s *server) listVariables(param string) fiber.Handler {
	return func(c fiber.Ctx) error {
		vars, err := s.versions.Variables(chartParam(c, param))
		if err != nil {
			return fail(c, err)
		}
		if vars == nil {
			vars = []chartflow.Variable{}
		}
		return c.JSON(vars)
	}
}

func (s *server) setVariable(param string) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req variableRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.versions.SetVariable(c.Context(), chartParam(c, param), c.Params("name"), req.Value); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	}
}

func (s *server) deleteVariable(param string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := s.versions.DeleteVariable(c.Context(), chartParam(c, param), c.Params("name")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	}
}
