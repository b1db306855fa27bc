package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/twpayne/go-polyline"
)

type Distance struct {
	Text          string `json:"text"`
	ValueInMeters int    `json:"value_in_meters"`
}

type Duration struct {
	Text           string `json:"text"`
	ValueInSeconds int    `json:"value_in_seconds"`
}

func NewDistance(meters int) *Distance {
	return &Distance{Text: fmt.Sprintf("%.1f km", float64(meters)/1000), ValueInMeters: meters}
}

func NewDuration(seconds int) *Duration {
	mins := (seconds + 30) / 60
	text := fmt.Sprintf("%d mins", mins)
	if mins >= 60 {
		text = fmt.Sprintf("%d hours %d mins", mins/60, mins%60)
	}
	return &Duration{Text: text, ValueInSeconds: seconds}
}

// Directions returned by a map provider. Treated as an opaque value by the
// planning and execution model.
type DirectionsData struct {
	EncodedPolyline string    `json:"encoded_polyline"`
	Distance        *Distance `json:"distance,omitempty"`
	Duration        *Duration `json:"duration,omitempty"`
}

func (d *DirectionsData) Clone() *DirectionsData {
	if d == nil {
		return nil
	}
	c := *d
	c.Distance = clonePtr(d.Distance)
	c.Duration = clonePtr(d.Duration)
	return &c
}

// Points decodes the polyline into [lat, lon] pairs.
func (d DirectionsData) Points() ([][]float64, error) {
	if d.EncodedPolyline == "" {
		return nil, errors.New("directions: empty polyline")
	}

	coords, rest, err := polyline.DecodeCoords([]byte(d.EncodedPolyline))
	if err != nil {
		return nil, fmt.Errorf("directions: decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("directions: %d trailing bytes after polyline", len(rest))
	}

	return coords, nil
}

// Represents the ordered work a vehicle performs during one shift.
// A Route is produced by the optimizer; its stops mix passenger stops from
// many trips with driver service stops.
type Route struct {
	ID                     string        `json:"id"`
	ShiftID                string        `json:"shift_id"`
	Stops                  StopList      `json:"stops"`
	EstimatedStartTime     time.Time     `json:"estimated_start_time"`
	EstimatedEndTime       time.Time     `json:"estimated_end_time"`
	EstimatedTotalDistance int           `json:"estimated_total_distance"`
	EstimatedDuration      time.Duration `json:"estimated_duration"`
}
