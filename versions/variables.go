package versions

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/meikuraledutech/chartflow"
)

var ErrInvalidVariable = errors.New("versions: variable needs a name and a value")

// SetVariable adds or replaces a variable. An empty ref targets the global
// list, otherwise the chart's local one.
func (s *Service) SetVariable(ctx context.Context, ref, name, value string) error {
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if name == "" || value == "" {
		return ErrInvalidVariable
	}
	return s.variables(ctx, ref, func(vars []chartflow.Variable) []chartflow.Variable {
		i := slices.IndexFunc(vars, func(v chartflow.Variable) bool { return v.Name == name })
		if i >= 0 {
			vars[i].Value = value
			return vars
		}
		return append(vars, chartflow.Variable{Name: name, Value: value})
	})
}

// DeleteVariable removes a variable by name. Missing names are ignored.
func (s *Service) DeleteVariable(ctx context.Context, ref, name string) error {
	return s.variables(ctx, ref, func(vars []chartflow.Variable) []chartflow.Variable {
		return slices.DeleteFunc(vars, func(v chartflow.Variable) bool { return v.Name == name })
	})
}

// Variables returns the global list for an empty ref, else the chart's list.
func (s *Service) Variables(ref string) ([]chartflow.Variable, error) {
	if ref == "" {
		return s.Snapshot().Variables, nil
	}
	ch, err := s.Chart(ref)
	if err != nil {
		return nil, err
	}
	return ch.Variables, nil
}

func (s *Service) variables(ctx context.Context, ref string, fn func([]chartflow.Variable) []chartflow.Variable) error {
	if ref == "" {
		return s.mutate(ctx, func(col *chartflow.Collection) error {
			col.Variables = fn(col.Variables)
			return nil
		})
	}
	return s.withChart(ctx, ref, func(_ *chartflow.Collection, ch *chartflow.Chart) error {
		ch.Variables = fn(ch.Variables)
		return nil
	})
}
