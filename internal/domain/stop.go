package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type StopType string

const (
	StopTypePickup  StopType = "pickup"
	StopTypeDropoff StopType = "dropoff"
	StopTypeBreak   StopType = "break"
	StopTypeFuel    StopType = "fuel"
)

type StopStatus string

const (
	StopStatusPending   StopStatus = "pending"
	StopStatusArrived   StopStatus = "arrived"
	StopStatusCompleted StopStatus = "completed"
	StopStatusSkipped   StopStatus = "skipped"
)

type StopProcedureType string

const (
	ProcedurePassengerSignature   StopProcedureType = "passenger_signature"
	ProcedurePhotoOfDropoff       StopProcedureType = "photo_of_dropoff"
	ProcedureCollectCopay         StopProcedureType = "collect_copay"
	ProcedureSecureMobilityDevice StopProcedureType = "secure_mobility_device"
	ProcedureScanPatientID        StopProcedureType = "scan_patient_id"
	ProcedureAssistDoorToDoor     StopProcedureType = "assist_door_to_door"
)

type ProcedureAppliesTo string

const (
	AppliesToAny     ProcedureAppliesTo = "any"
	AppliesToPickup  ProcedureAppliesTo = "pickup"
	AppliesToDropoff ProcedureAppliesTo = "dropoff"
)

type ProcedureRule struct {
	ProcedureID StopProcedureType  `json:"procedure_id"`
	AppliesTo   ProcedureAppliesTo `json:"applies_to"`
}

// Per-stop adjustments to the procedure set the driver must perform.
type ProcedureOverrides struct {
	Add    []ProcedureRule     `json:"add,omitempty"`
	Remove []StopProcedureType `json:"remove,omitempty"`
}

type GpsLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fields shared by every stop variant.
type BaseStop struct {
	ID          string        `json:"id"`
	Type        StopType      `json:"type"`
	Status      StopStatus    `json:"status"`
	Duration    time.Duration `json:"duration"`
	TimeWindows []TimeWindow  `json:"time_windows,omitempty"`
}

// Stop is the closed set of stop variants a Route may contain:
// PassengerStop and DriverServiceStop. The unexported method seals the set.
type Stop interface {
	StopID() string
	Base() BaseStop
	LoadDelta() CapacityRequirements
	isStop()
}

// A stop where a passenger boards or alights.
type PassengerStop struct {
	BaseStop
	PassengerID        string               `json:"passenger_id"`
	AccessPointID      string               `json:"access_point_id"`
	PlaceID            string               `json:"place_id"`
	CapacityDelta      CapacityRequirements `json:"capacity_delta"`
	ProcedureOverrides *ProcedureOverrides  `json:"procedure_overrides,omitempty"`
}

// A driver-only stop (break, fueling). It never changes passenger load.
type DriverServiceStop struct {
	BaseStop
	Location GpsLocation `json:"location"`
}

func (s PassengerStop) StopID() string { return s.ID }
func (s PassengerStop) Base() BaseStop { return s.BaseStop }
func (s PassengerStop) LoadDelta() CapacityRequirements { return s.CapacityDelta }
func (PassengerStop) isStop() {}

// Clone returns a copy that shares no windows or overrides with s.
func (s PassengerStop) Clone() PassengerStop {
	s.TimeWindows = cloneTimeWindows(s.TimeWindows)
	if o := s.ProcedureOverrides; o != nil {
		s.ProcedureOverrides = &ProcedureOverrides{
			Add:    slices.Clone(o.Add),
			Remove: slices.Clone(o.Remove),
		}
	}
	return s
}

func cloneTimeWindows(ws []TimeWindow) []TimeWindow {
	if ws == nil {
		return nil
	}
	out := make([]TimeWindow, len(ws))
	for i, w := range ws {
		out[i] = TimeWindow{
			MinStartTime: clonePtr(w.MinStartTime),
			MaxStartTime: clonePtr(w.MaxStartTime),
			MinEndTime:   clonePtr(w.MinEndTime),
			MaxEndTime:   clonePtr(w.MaxEndTime),
		}
	}
	return out
}

func (s DriverServiceStop) StopID() string { return s.ID }
func (s DriverServiceStop) Base() BaseStop { return s.BaseStop }
func (s DriverServiceStop) LoadDelta() CapacityRequirements { return CapacityRequirements{} }
func (DriverServiceStop) isStop() {}

const (
	stopKindPassenger     = "passenger"
	stopKindDriverService = "driver_service"
)

func stopKind(s Stop) (string, error) {
	switch s.(type) {
	case PassengerStop, *PassengerStop:
		return stopKindPassenger, nil
	case DriverServiceStop, *DriverServiceStop:
		return stopKindDriverService, nil
	default:
		return "", fmt.Errorf("stop kind: unsupported stop variant %T", s)
	}
}

// PassengerStops converts a trip's stops to the route-level Stop list.
func PassengerStops(stops []PassengerStop) []Stop {
	out := make([]Stop, 0, len(stops))
	for _, s := range stops {
		out = append(out, s)
	}
	return out
}

// StopList is an ordered list of stops that serializes each element with an
// explicit "kind" discriminator.
type StopList []Stop

type passengerStopJSON struct {
	Kind string `json:"kind"`
	PassengerStop
}

type driverServiceStopJSON struct {
	Kind string `json:"kind"`
	DriverServiceStop
}

func (l StopList) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(l))
	for i, s := range l {
		kind, err := stopKind(s)
		if err != nil {
			return nil, fmt.Errorf("marshal stops: index %d: %w", i, err)
		}

		switch v := s.(type) {
		case PassengerStop:
			out = append(out, passengerStopJSON{Kind: kind, PassengerStop: v})
		case *PassengerStop:
			out = append(out, passengerStopJSON{Kind: kind, PassengerStop: *v})
		case DriverServiceStop:
			out = append(out, driverServiceStopJSON{Kind: kind, DriverServiceStop: v})
		case *DriverServiceStop:
			out = append(out, driverServiceStopJSON{Kind: kind, DriverServiceStop: *v})
		}
	}
	return json.Marshal(out)
}

func (l *StopList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("unmarshal stops: %w", err)
	}

	stops := make(StopList, 0, len(raws))
	for i, raw := range raws {
		var head struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("unmarshal stops: index %d: %w", i, err)
		}

		switch head.Kind {
		case stopKindPassenger:
			var v passengerStopJSON
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("unmarshal stops: index %d: %w", i, err)
			}
			stops = append(stops, v.PassengerStop)
		case stopKindDriverService:
			var v driverServiceStopJSON
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("unmarshal stops: index %d: %w", i, err)
			}
			stops = append(stops, v.DriverServiceStop)
		default:
			return fmt.Errorf("unmarshal stops: index %d: unknown stop kind %q", i, head.Kind)
		}
	}

	*l = stops
	return nil
}
