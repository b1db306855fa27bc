package services

import (
	"context"
	"nemt-trip-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var (
	female = domain.Driver{ID: "d-ann", Gender: domain.GenderFemale, Attributes: []string{"cpr", "lift"}}
	male   = domain.Driver{ID: "d-bob", Gender: domain.GenderMale, Attributes: []string{"cpr"}}

	sedan    = domain.Vehicle{ID: "v-sedan", Type: domain.VehicleTypeSedan, CapacityProfile: domain.CapacityRequirements{AmbulatorySeats: 3}}
	chairVan = domain.Vehicle{ID: "v-chair", Type: domain.VehicleTypeWheelchairVan, CapacityProfile: domain.CapacityRequirements{WheelchairSpaces: 2, AmbulatorySeats: 2}}
)

func TestEvaluateWheelchairRequirementRejectsSedan(t *testing.T) {
	e := NewConstraintEvaluator(nil)
	c := &domain.TripConstraints{
		Requirements: &domain.ConstraintSet{
			Vehicle: &domain.VehicleConstraints{Type: ptr(domain.VehicleTypeWheelchairVan)},
		},
	}

	ev := e.Evaluate(c, female, sedan)
	assert.False(t, ev.Admissible)
	require.Len(t, ev.Failures, 1)
	assert.Equal(t, domain.FieldVehicleType, ev.Failures[0].Field)
	assert.Equal(t, domain.CategoryRequirement, ev.Failures[0].Category)
	assert.Zero(t, ev.Score)

	var cv *domain.ConstraintViolation
	require.ErrorAs(t, ev.Err(), &cv)

	assert.True(t, e.Evaluate(c, female, chairVan).Admissible)
}

func TestEvaluateReportsEveryFailure(t *testing.T) {
	e := NewConstraintEvaluator(nil)
	c := &domain.TripConstraints{
		Requirements: &domain.ConstraintSet{
			Driver:  &domain.DriverConstraints{Gender: ptr(domain.GenderFemale), RequiredAttributes: []string{"lift"}},
			Vehicle: &domain.VehicleConstraints{Ids: []string{"v-chair"}},
		},
		Prohibitions: &domain.ConstraintSet{
			Driver: &domain.DriverConstraints{Ids: []string{"d-bob"}},
		},
	}

	ev := e.Evaluate(c, male, sedan)
	assert.False(t, ev.Admissible)

	fields := make([]domain.ConstraintField, 0, len(ev.Failures))
	for _, f := range ev.Failures {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []domain.ConstraintField{
		domain.FieldDriverGender,
		domain.FieldDriverAttributes,
		domain.FieldVehicleIds,
		domain.FieldDriverIds,
	}, fields)
}

func TestEvaluateContradictoryConstraintsAdmitNobody(t *testing.T) {
	e := NewConstraintEvaluator(nil)
	c := &domain.TripConstraints{
		Requirements: &domain.ConstraintSet{Vehicle: &domain.VehicleConstraints{Ids: []string{"v-chair"}}},
		Prohibitions: &domain.ConstraintSet{Vehicle: &domain.VehicleConstraints{Ids: []string{"v-chair"}}},
	}

	for _, v := range []domain.Vehicle{sedan, chairVan} {
		assert.False(t, e.Evaluate(c, female, v).Admissible, v.ID)
	}
}

func TestEvaluateEmptySetsImposeNoRestriction(t *testing.T) {
	e := NewConstraintEvaluator(nil)
	c := &domain.TripConstraints{
		Requirements: &domain.ConstraintSet{
			Driver:  &domain.DriverConstraints{Ids: []string{}, RequiredAttributes: []string{}},
			Vehicle: &domain.VehicleConstraints{Ids: []string{}},
		},
		Prohibitions: &domain.ConstraintSet{Vehicle: &domain.VehicleConstraints{Ids: []string{}}},
	}

	ev := e.Evaluate(c, male, sedan)
	assert.True(t, ev.Admissible)
	assert.Empty(t, ev.Failures)
}

func TestEvaluateScoresPreferences(t *testing.T) {
	weights, err := ScoringWeightsFromMap(map[string]float64{"driver.gender": 3})
	require.NoError(t, err)
	e := NewConstraintEvaluator(weights)

	c := &domain.TripConstraints{
		Preferences: &domain.ConstraintSet{
			Driver:  &domain.DriverConstraints{Gender: ptr(domain.GenderFemale)},
			Vehicle: &domain.VehicleConstraints{Type: ptr(domain.VehicleTypeWheelchairVan)},
		},
	}

	assert.InDelta(t, 1.0, e.Evaluate(c, female, chairVan).Score, 1e-9)
	assert.InDelta(t, 0.75, e.Evaluate(c, female, sedan).Score, 1e-9)
	assert.InDelta(t, 0.25, e.Evaluate(c, male, chairVan).Score, 1e-9)
	assert.InDelta(t, 0.0, e.Evaluate(c, male, sedan).Score, 1e-9)
	assert.True(t, e.Evaluate(c, male, sedan).Admissible)

	assert.Zero(t, e.Evaluate(&domain.TripConstraints{}, female, chairVan).Score)
	assert.Zero(t, e.Evaluate(nil, female, chairVan).Score)
}

func TestScoringWeightsFromMapRejectsUnknownField(t *testing.T) {
	_, err := ScoringWeightsFromMap(map[string]float64{"vehicle.color": 1})
	require.Error(t, err)
}

// Adding a requirement or prohibition never grows the admissible set, and
// adding a preference never changes it.
func TestConstraintMonotonicity(t *testing.T) {
	e := NewConstraintEvaluator(nil)
	ctx := context.Background()

	var candidates []domain.Candidate
	for _, d := range []domain.Driver{female, male} {
		for _, v := range []domain.Vehicle{sedan, chairVan} {
			candidates = append(candidates, domain.Candidate{Driver: d, Vehicle: v})
		}
	}

	admissible := func(c *domain.TripConstraints) map[string]bool {
		ranked, err := e.RankCandidates(ctx, c, candidates)
		require.NoError(t, err)
		out := map[string]bool{}
		for _, ev := range ranked {
			if ev.Admissible {
				out[ev.Candidate.Driver.ID+"/"+ev.Candidate.Vehicle.ID] = true
			}
		}
		return out
	}
	subset := func(a, b map[string]bool) {
		t.Helper()
		for k := range a {
			assert.True(t, b[k], "%s admitted after tightening", k)
		}
	}

	base := &domain.TripConstraints{
		Requirements: &domain.ConstraintSet{Driver: &domain.DriverConstraints{RequiredAttributes: []string{"cpr"}}},
	}
	before := admissible(base)
	assert.Len(t, before, 4)

	withReq := &domain.TripConstraints{
		Requirements: &domain.ConstraintSet{
			Driver:  &domain.DriverConstraints{RequiredAttributes: []string{"cpr"}},
			Vehicle: &domain.VehicleConstraints{Type: ptr(domain.VehicleTypeWheelchairVan)},
		},
	}
	afterReq := admissible(withReq)
	subset(afterReq, before)
	assert.Len(t, afterReq, 2)

	withProhib := &domain.TripConstraints{
		Requirements: withReq.Requirements,
		Prohibitions: &domain.ConstraintSet{Driver: &domain.DriverConstraints{Gender: ptr(domain.GenderMale)}},
	}
	afterProhib := admissible(withProhib)
	subset(afterProhib, afterReq)
	assert.Len(t, afterProhib, 1)

	withPref := &domain.TripConstraints{
		Requirements: withProhib.Requirements,
		Prohibitions: withProhib.Prohibitions,
		Preferences:  &domain.ConstraintSet{Vehicle: &domain.VehicleConstraints{Ids: []string{"v-sedan"}}},
	}
	assert.Equal(t, afterProhib, admissible(withPref))
}

func TestRankCandidatesOrdering(t *testing.T) {
	e := NewConstraintEvaluator(nil)
	c := &domain.TripConstraints{
		Requirements: &domain.ConstraintSet{Vehicle: &domain.VehicleConstraints{Type: ptr(domain.VehicleTypeWheelchairVan)}},
		Preferences:  &domain.ConstraintSet{Driver: &domain.DriverConstraints{Gender: ptr(domain.GenderFemale)}},
	}

	ranked, err := e.RankCandidates(context.Background(), c, []domain.Candidate{
		{Driver: male, Vehicle: sedan},
		{Driver: male, Vehicle: chairVan},
		{Driver: female, Vehicle: chairVan},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "d-ann", ranked[0].Candidate.Driver.ID)
	assert.Equal(t, "d-bob", ranked[1].Candidate.Driver.ID)
	assert.True(t, ranked[1].Admissible)
	assert.False(t, ranked[2].Admissible)
}

func TestRankCandidatesHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConstraintEvaluator(nil).RankCandidates(ctx, nil, []domain.Candidate{{Driver: female, Vehicle: sedan}})
	require.ErrorIs(t, err, context.Canceled)
}
