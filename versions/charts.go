package versions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/meikuraledutech/chartflow"
)

var ErrEmptyName = errors.New("versions: chart name is empty")

// AddChart creates an empty chart and makes it the active one.
func (s *Service) AddChart(ctx context.Context, name string) (chartflow.Chart, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chartflow.Chart{}, ErrEmptyName
	}
	ch := chartflow.Chart{
		ID:                s.newID(),
		Name:              name,
		Nodes:             []chartflow.Node{},
		Edges:             []chartflow.Edge{},
		Color:             DefaultColor,
		PublishedVersions: []chartflow.Version{},
	}
	err := s.mutate(ctx, func(col *chartflow.Collection) error {
		if col.Index(name) >= 0 {
			return fmt.Errorf("%w: %q", chartflow.ErrDuplicateName, name)
		}
		col.Charts = append(col.Charts, ch)
		col.Active = ch.ID
		return nil
	})
	if err != nil {
		return chartflow.Chart{}, err
	}
	s.logger.Info("chart added", "chart", name, "id", ch.ID)
	return ch, nil
}

// UpsertGraph replaces the live graph of a chart. The graph is stored as given;
// callers that changed topology pass an already compiled graph.
func (s *Service) UpsertGraph(ctx context.Context, ref string, nodes []chartflow.Node, edges []chartflow.Edge) error {
	return s.withChart(ctx, ref, func(_ *chartflow.Collection, ch *chartflow.Chart) error {
		ch.Nodes = chartflow.CloneNodes(nodes)
		ch.Edges = slices.Clone(edges)
		return nil
	})
}

// ReplaceGraph replaces the live graph of a chart and compiles it in one save.
func (s *Service) ReplaceGraph(ctx context.Context, ref string, nodes []chartflow.Node, edges []chartflow.Edge) error {
	return s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		ch.Nodes = chartflow.CloneNodes(nodes)
		ch.Edges = slices.Clone(edges)
		s.compile(col, ch)
		return nil
	})
}

// RenameChart changes a chart's display name. Redirects compiled against the
// chart's id keep resolving; their stored tab name is refreshed on the next
// compilation of the referring chart.
func (s *Service) RenameChart(ctx context.Context, chartID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}
	var oldName string
	err := s.withChart(ctx, chartID, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		if i := col.Index(newName); i >= 0 && col.Charts[i].ID != ch.ID {
			return fmt.Errorf("%w: %q", chartflow.ErrDuplicateName, newName)
		}
		oldName = ch.Name
		ch.Name = newName
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("chart renamed", "id", chartID, "from", oldName, "to", newName)
	return nil
}

// DeleteChart removes a chart and selects the first remaining chart. Redirects
// in other charts that point at it are left to fail soft.
func (s *Service) DeleteChart(ctx context.Context, ref string) error {
	var name string
	err := s.mutate(ctx, func(col *chartflow.Collection) error {
		i := col.Index(ref)
		if i < 0 {
			return fmt.Errorf("%w: %q", chartflow.ErrChartNotFound, ref)
		}
		name = col.Charts[i].Name
		col.Charts = slices.Delete(col.Charts, i, i+1)
		col.Active = ""
		if len(col.Charts) > 0 {
			col.Active = col.Charts[0].ID
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("chart deleted", "chart", name)
	return nil
}

// Recompile re-resolves a chart against the current collection.
func (s *Service) Recompile(ctx context.Context, ref string) error {
	return s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		s.compile(col, ch)
		return nil
	})
}

// SetActive selects the chart shown in the editor.
func (s *Service) SetActive(ctx context.Context, ref string) error {
	return s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		col.Active = ch.ID
		return nil
	})
}

// SetColor sets a chart's tab color.
func (s *Service) SetColor(ctx context.Context, ref, color string) error {
	return s.withChart(ctx, ref, func(_ *chartflow.Collection, ch *chartflow.Chart) error {
		ch.Color = color
		return nil
	})
}

// SetOnePage toggles a chart's one-page display mode.
func (s *Service) SetOnePage(ctx context.Context, ref string, on bool) error {
	return s.withChart(ctx, ref, func(_ *chartflow.Collection, ch *chartflow.Chart) error {
		ch.OnePageMode = on
		return nil
	})
}
