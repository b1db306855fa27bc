package services

import (
	"context"
	"fmt"
	"nemt-trip-service/internal/domain"
	"runtime"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ScoringWeights gives each preference field its share of the fit score.
// Fields missing from the map weigh zero.
type ScoringWeights map[domain.ConstraintField]float64

var constraintFields = []domain.ConstraintField{
	domain.FieldDriverIds,
	domain.FieldDriverGender,
	domain.FieldDriverAttributes,
	domain.FieldVehicleIds,
	domain.FieldVehicleType,
}

func DefaultScoringWeights() ScoringWeights {
	w := make(ScoringWeights, len(constraintFields))
	for _, f := range constraintFields {
		w[f] = 1
	}
	return w
}

// ScoringWeightsFromMap overlays configured weights, keyed by field name,
// on top of the defaults.
func ScoringWeightsFromMap(m map[string]float64) (ScoringWeights, error) {
	w := DefaultScoringWeights()
	for k, v := range m {
		f := domain.ConstraintField(k)
		if !slices.Contains(constraintFields, f) {
			return nil, fmt.Errorf("scoring weights: unknown constraint field %q", k)
		}
		if v < 0 {
			return nil, fmt.Errorf("scoring weights: %s must not be negative", k)
		}
		w[f] = v
	}
	return w, nil
}

// Result of checking one candidate against a trip's constraints.
type Evaluation struct {
	Candidate  domain.Candidate          `json:"candidate"`
	Admissible bool                      `json:"admissible"`
	Score      float64                   `json:"score"`
	Failures   []domain.FailedConstraint `json:"failures"`
}

// Err returns a ConstraintViolation for an inadmissible candidate, nil otherwise.
func (e Evaluation) Err() error {
	if e.Admissible {
		return nil
	}
	return &domain.ConstraintViolation{Failures: e.Failures}
}

// ConstraintEvaluator decides whether a driver+vehicle pairing is legal for
// a trip and scores how well it matches the trip's preferences.
//
// It holds no mutable state and is safe for concurrent use.
type ConstraintEvaluator struct {
	weights ScoringWeights
}

func NewConstraintEvaluator(weights ScoringWeights) *ConstraintEvaluator {
	if weights == nil {
		weights = DefaultScoringWeights()
	}
	return &ConstraintEvaluator{weights: weights}
}

// fieldCheck is the outcome of matching one populated constraint field.
type fieldCheck struct {
	field    domain.ConstraintField
	matched  bool
	actual   string
	expected string
}

// checks lists only the populated fields of set; empty slices count as unset.
func checks(set *domain.ConstraintSet, d domain.Driver, v domain.Vehicle) []fieldCheck {
	if set == nil {
		return nil
	}

	var out []fieldCheck

	if dc := set.Driver; dc != nil {
		if len(dc.Ids) > 0 {
			out = append(out, fieldCheck{
				field:    domain.FieldDriverIds,
				matched:  slices.Contains(dc.Ids, d.ID),
				actual:   d.ID,
				expected: "one of [" + strings.Join(dc.Ids, ", ") + "]",
			})
		}
		if dc.Gender != nil {
			out = append(out, fieldCheck{
				field:    domain.FieldDriverGender,
				matched:  d.Gender == *dc.Gender,
				actual:   string(d.Gender),
				expected: string(*dc.Gender),
			})
		}
		if len(dc.RequiredAttributes) > 0 {
			matched := true
			for _, a := range dc.RequiredAttributes {
				if !slices.Contains(d.Attributes, a) {
					matched = false
					break
				}
			}
			out = append(out, fieldCheck{
				field:    domain.FieldDriverAttributes,
				matched:  matched,
				actual:   "[" + strings.Join(d.Attributes, ", ") + "]",
				expected: "all of [" + strings.Join(dc.RequiredAttributes, ", ") + "]",
			})
		}
	}

	if vc := set.Vehicle; vc != nil {
		if len(vc.Ids) > 0 {
			out = append(out, fieldCheck{
				field:    domain.FieldVehicleIds,
				matched:  slices.Contains(vc.Ids, v.ID),
				actual:   v.ID,
				expected: "one of [" + strings.Join(vc.Ids, ", ") + "]",
			})
		}
		if vc.Type != nil {
			out = append(out, fieldCheck{
				field:    domain.FieldVehicleType,
				matched:  v.Type == *vc.Type,
				actual:   string(v.Type),
				expected: string(*vc.Type),
			})
		}
	}

	return out
}

// Evaluate checks every requirement and prohibition, collecting all failures,
// and scores preferences for admissible candidates. A nil constraints value
// admits every candidate with score 0.
func (e *ConstraintEvaluator) Evaluate(c *domain.TripConstraints, d domain.Driver, v domain.Vehicle) Evaluation {
	ev := Evaluation{
		Candidate:  domain.Candidate{Driver: d, Vehicle: v},
		Admissible: true,
		Failures:   []domain.FailedConstraint{},
	}
	if c == nil {
		return ev
	}

	for _, fc := range checks(c.Requirements, d, v) {
		if !fc.matched {
			ev.Admissible = false
			ev.Failures = append(ev.Failures, domain.FailedConstraint{
				Category: domain.CategoryRequirement,
				Field:    fc.field,
				Detail:   fmt.Sprintf("want %s, got %s", fc.expected, fc.actual),
			})
		}
	}

	for _, fc := range checks(c.Prohibitions, d, v) {
		if fc.matched {
			ev.Admissible = false
			ev.Failures = append(ev.Failures, domain.FailedConstraint{
				Category: domain.CategoryProhibition,
				Field:    fc.field,
				Detail:   fmt.Sprintf("%s matches prohibited %s", fc.actual, fc.expected),
			})
		}
	}

	if ev.Admissible {
		ev.Score = e.score(checks(c.Preferences, d, v))
	}

	return ev
}

func (e *ConstraintEvaluator) score(prefs []fieldCheck) float64 {
	var total, matched float64
	for _, fc := range prefs {
		w := e.weights[fc.field]
		total += w
		if fc.matched {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

// RankCandidates evaluates candidates concurrently and orders the results:
// admissible first, then by score descending, then by driver and vehicle id.
func (e *ConstraintEvaluator) RankCandidates(
	ctx context.Context,
	c *domain.TripConstraints,
	candidates []domain.Candidate,
) ([]Evaluation, error) {
	out := make([]Evaluation, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, cand := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = e.Evaluate(c, cand.Driver, cand.Vehicle)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Admissible != b.Admissible {
			return a.Admissible
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Candidate.Driver.ID != b.Candidate.Driver.ID {
			return a.Candidate.Driver.ID < b.Candidate.Driver.ID
		}
		return a.Candidate.Vehicle.ID < b.Candidate.Vehicle.ID
	})

	return out, nil
}
