package domain

import "fmt"

// Seating capacity across the three physical capacity types.
// The same shape is used for a trip's required capacity, a vehicle's
// capacity profile, and the signed load change caused by a stop
// (pickup positive, dropoff negative).
type CapacityRequirements struct {
	WheelchairSpaces  int `json:"wheelchair_spaces"`
	AmbulatorySeats   int `json:"ambulatory_seats"`
	StretcherCapacity int `json:"stretcher_capacity"`
}

type CapacityKind string

const (
	CapacityWheelchair CapacityKind = "wheelchair_spaces"
	CapacityAmbulatory CapacityKind = "ambulatory_seats"
	CapacityStretcher  CapacityKind = "stretcher_capacity"
)

var capacityKinds = []CapacityKind{CapacityWheelchair, CapacityAmbulatory, CapacityStretcher}

func (c CapacityRequirements) Add(o CapacityRequirements) CapacityRequirements {
	return CapacityRequirements{
		WheelchairSpaces:  c.WheelchairSpaces + o.WheelchairSpaces,
		AmbulatorySeats:   c.AmbulatorySeats + o.AmbulatorySeats,
		StretcherCapacity: c.StretcherCapacity + o.StretcherCapacity,
	}
}

func (c CapacityRequirements) Negate() CapacityRequirements {
	return CapacityRequirements{
		WheelchairSpaces:  -c.WheelchairSpaces,
		AmbulatorySeats:   -c.AmbulatorySeats,
		StretcherCapacity: -c.StretcherCapacity,
	}
}

func (c CapacityRequirements) IsZero() bool {
	return c == CapacityRequirements{}
}

// Value of a single capacity component.
func (c CapacityRequirements) Get(kind CapacityKind) int {
	switch kind {
	case CapacityWheelchair:
		return c.WheelchairSpaces
	case CapacityAmbulatory:
		return c.AmbulatorySeats
	case CapacityStretcher:
		return c.StretcherCapacity
	}
	return 0
}

// Fits reports whether every component of c is at most the matching component of limit.
func (c CapacityRequirements) Fits(limit CapacityRequirements) bool {
	for _, k := range capacityKinds {
		if c.Get(k) > limit.Get(k) {
			return false
		}
	}
	return true
}

func (c CapacityRequirements) String() string {
	return fmt.Sprintf("(wc=%d, amb=%d, str=%d)", c.WheelchairSpaces, c.AmbulatorySeats, c.StretcherCapacity)
}

// ValidateCapacity walks the stops in order, accumulating each stop's capacity
// delta, and fails at the first stop where any component of the running load
// drops below zero or exceeds the vehicle capacity.
//
// The function is pure and safe to call concurrently.
func ValidateCapacity(stops []Stop, vehicleCapacity CapacityRequirements) error {
	var load CapacityRequirements

	for i, s := range stops {
		load = load.Add(s.LoadDelta())

		for _, k := range capacityKinds {
			v := load.Get(k)
			if v < 0 {
				return &CapacityViolation{
					StopIndex: i,
					StopID:    s.StopID(),
					Kind:      k,
					Load:      v,
					Limit:     vehicleCapacity.Get(k),
					Underflow: true,
				}
			}
			if v > vehicleCapacity.Get(k) {
				return &CapacityViolation{
					StopIndex: i,
					StopID:    s.StopID(),
					Kind:      k,
					Load:      v,
					Limit:     vehicleCapacity.Get(k),
				}
			}
		}
	}

	return nil
}

// RunningLoad returns the load after each stop; element i is the load on
// board once stop i has been served.
func RunningLoad(stops []Stop) []CapacityRequirements {
	out := make([]CapacityRequirements, 0, len(stops))

	var load CapacityRequirements
	for _, s := range stops {
		load = load.Add(s.LoadDelta())
		out = append(out, load)
	}

	return out
}

// Max returns the component-wise maximum of c and o.
func (c CapacityRequirements) Max(o CapacityRequirements) CapacityRequirements {
	return CapacityRequirements{
		WheelchairSpaces:  max(c.WheelchairSpaces, o.WheelchairSpaces),
		AmbulatorySeats:   max(c.AmbulatorySeats, o.AmbulatorySeats),
		StretcherCapacity: max(c.StretcherCapacity, o.StretcherCapacity),
	}
}

// PeakLoad is the highest running load per component over the sequence.
func PeakLoad(stops []Stop) CapacityRequirements {
	var peak CapacityRequirements
	for _, load := range RunningLoad(stops) {
		peak = peak.Max(load)
	}
	return peak
}

// NetZero reports whether the capacity deltas of a trip's own stops cancel exactly.
func NetZero(stops []PassengerStop) bool {
	var sum CapacityRequirements
	for _, s := range stops {
		sum = sum.Add(s.CapacityDelta)
	}
	return sum.IsZero()
}
