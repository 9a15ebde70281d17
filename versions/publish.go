package versions

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/meikuraledutech/chartflow"
)

// ErrPublishRejected wraps every reason a chart cannot be published.
var ErrPublishRejected = errors.New("versions: cannot publish")

var (
	ErrEmptyGraph   = fmt.Errorf("%w: no nodes in the diagram", ErrPublishRejected)
	ErrMissingStart = fmt.Errorf("%w: no start node found", ErrPublishRejected)
	ErrMissingEnd   = fmt.Errorf("%w: no end node found", ErrPublishRejected)
)

// publishable checks that the live graph can be snapshotted.
func publishable(ch chartflow.Chart) error {
	switch {
	case len(ch.Nodes) == 0:
		return ErrEmptyGraph
	case !ch.Has(chartflow.TypeStart):
		return ErrMissingStart
	case !ch.Has(chartflow.TypeEnd):
		return ErrMissingEnd
	}
	return nil
}

func rejection(err error) string {
	switch {
	case errors.Is(err, ErrEmptyGraph):
		return "empty_graph"
	case errors.Is(err, ErrMissingStart):
		return "missing_start"
	case errors.Is(err, ErrMissingEnd):
		return "missing_end"
	}
	return "error"
}

// Publish appends a snapshot of the chart's live graph. Version numbers start
// at 1 and always follow the highest existing one.
func (s *Service) Publish(ctx context.Context, ref, message string) (chartflow.Version, error) {
	var v chartflow.Version
	err := s.withChart(ctx, ref, func(_ *chartflow.Collection, ch *chartflow.Chart) error {
		if err := publishable(*ch); err != nil {
			return err
		}
		next := 1
		if n := len(ch.PublishedVersions); n > 0 {
			next = ch.PublishedVersions[n-1].Version + 1
		}
		v = chartflow.Version{
			Version: next,
			Date:    s.now().UTC(),
			Message: message,
			Nodes:   chartflow.CloneNodes(ch.Nodes),
			Edges:   slices.Clone(ch.Edges),
		}
		ch.PublishedVersions = append(ch.PublishedVersions, v)
		return nil
	})
	if err != nil {
		s.metrics.Publish(rejection(err))
		s.logger.Warn("publish rejected", "chart", ref, "error", err)
		return chartflow.Version{}, err
	}
	s.metrics.Publish("ok")
	s.logger.Info("chart published", "chart", ref, "version", v.Version)
	return v.Clone(), nil
}

// Revert replaces the live graph with published version v, recompiled against
// the current charts. History is left untouched.
func (s *Service) Revert(ctx context.Context, ref string, v int) (chartflow.Chart, error) {
	var out chartflow.Chart
	err := s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		ver, ok := ch.Version(v)
		if !ok {
			return fmt.Errorf("%w: %q version %d", chartflow.ErrVersionNotFound, ch.Name, v)
		}
		ch.Edges = slices.Clone(ver.Edges)
		ch.Nodes = chartflow.CloneNodes(ver.Nodes)
		s.compile(col, ch)
		out = ch.Clone()
		return nil
	})
	if err != nil {
		return chartflow.Chart{}, err
	}
	s.metrics.Revert()
	s.logger.Info("chart reverted", "chart", ref, "version", v)
	return out, nil
}

// ListVersions returns a chart's published versions in publish order.
func (s *Service) ListVersions(ref string) ([]chartflow.Version, error) {
	ch, err := s.Chart(ref)
	if err != nil {
		return nil, err
	}
	return ch.PublishedVersions, nil
}
