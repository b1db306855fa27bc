package domain

import "slices"

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

type VehicleType string

const (
	VehicleTypeSedan         VehicleType = "sedan"
	VehicleTypeVan           VehicleType = "van"
	VehicleTypeWheelchairVan VehicleType = "wheelchair_van"
	VehicleTypeStretcherVan  VehicleType = "stretcher_van"
)

// Constraints on who may drive. A nil field imposes no constraint; an empty
// slice is treated the same as nil.
type DriverConstraints struct {
	Ids                []string `json:"ids,omitempty"`
	Gender             *Gender  `json:"gender,omitempty"`
	RequiredAttributes []string `json:"required_attributes,omitempty"`
}

// Constraints on which vehicle may be used. Same nil/empty semantics as DriverConstraints.
type VehicleConstraints struct {
	Ids  []string     `json:"ids,omitempty"`
	Type *VehicleType `json:"type,omitempty"`
}

type ConstraintSet struct {
	Driver  *DriverConstraints  `json:"driver,omitempty"`
	Vehicle *VehicleConstraints `json:"vehicle,omitempty"`
}

// Hard and soft constraints attached to a Trip.
//
// Requirements must all hold, any matching Prohibition disqualifies, and
// Preferences only affect the fit score.
type TripConstraints struct {
	Preferences  *ConstraintSet `json:"preferences,omitempty"`
	Requirements *ConstraintSet `json:"requirements,omitempty"`
	Prohibitions *ConstraintSet `json:"prohibitions,omitempty"`
}

// Driver as seen by the constraint evaluator.
type Driver struct {
	ID         string   `json:"id"`
	Gender     Gender   `json:"gender"`
	Attributes []string `json:"attributes,omitempty"`
}

// Vehicle as seen by the constraint evaluator and capacity ledger.
type Vehicle struct {
	ID              string               `json:"id"`
	Type            VehicleType          `json:"type"`
	CapacityProfile CapacityRequirements `json:"capacity_profile"`
}

// A driver and vehicle proposed together for a trip.
type Candidate struct {
	Driver  Driver  `json:"driver"`
	Vehicle Vehicle `json:"vehicle"`
}

type ConstraintCategory string

const (
	CategoryRequirement ConstraintCategory = "requirement"
	CategoryProhibition ConstraintCategory = "prohibition"
)

type ConstraintField string

const (
	FieldDriverIds        ConstraintField = "driver.ids"
	FieldDriverGender     ConstraintField = "driver.gender"
	FieldDriverAttributes ConstraintField = "driver.required_attributes"
	FieldVehicleIds       ConstraintField = "vehicle.ids"
	FieldVehicleType      ConstraintField = "vehicle.type"
)

// One hard constraint a candidate failed.
type FailedConstraint struct {
	Category ConstraintCategory `json:"category"`
	Field    ConstraintField    `json:"field"`
	Detail   string             `json:"detail"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (c *TripConstraints) Clone() *TripConstraints {
	if c == nil {
		return nil
	}
	return &TripConstraints{
		Preferences:  c.Preferences.Clone(),
		Requirements: c.Requirements.Clone(),
		Prohibitions: c.Prohibitions.Clone(),
	}
}

func (s *ConstraintSet) Clone() *ConstraintSet {
	if s == nil {
		return nil
	}
	out := &ConstraintSet{}
	if d := s.Driver; d != nil {
		out.Driver = &DriverConstraints{
			Ids:                slices.Clone(d.Ids),
			Gender:             clonePtr(d.Gender),
			RequiredAttributes: slices.Clone(d.RequiredAttributes),
		}
	}
	if v := s.Vehicle; v != nil {
		out.Vehicle = &VehicleConstraints{
			Ids:  slices.Clone(v.Ids),
			Type: clonePtr(v.Type),
		}
	}
	return out
}
