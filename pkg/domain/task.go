// Package domain holds the data model shared across the optimizer phases:
// Task, Cleaner, CandidateGroup, AssignmentCandidate, ScheduleRow,
// DecisionEvent and Run, plus the ingestion-boundary type coercion helpers.
package domain

import (
	"math"
	"strconv"
	"strings"
)

// ApartmentType is one of the fixed apartment type tags.
type ApartmentType string

const (
	ApartmentA ApartmentType = "A"
	ApartmentB ApartmentType = "B"
	ApartmentC ApartmentType = "C"
	ApartmentD ApartmentType = "D"
	ApartmentE ApartmentType = "E"
	ApartmentF ApartmentType = "F"
	ApartmentX ApartmentType = "X"
)

// Priority is a task's preferred-start-time tag. The zero value means "no
// priority configured".
type Priority string

const (
	PriorityNone Priority = ""
	PriorityEO   Priority = "EO"
	PriorityHP   Priority = "HP"
	PriorityLP   Priority = "LP"
)

// Coordinates is a geographic position (latitude, longitude), both finite.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Task is an apartment-cleaning job to be scheduled.
type Task struct {
	ID            int
	LogisticCode  int
	Coordinates   Coordinates
	ClientID      int
	Premium       bool
	Straordinaria bool
	ApartmentType ApartmentType
	Priority      Priority
	// DurationMinutes is the cleaning duration; defaults to 60 at ingestion
	// when the source omitted it.
	DurationMinutes int
	// CheckoutMinute/CheckinMinute are minutes-from-midnight, or nil when
	// the task carries no such constraint.
	CheckoutMinute *int
	CheckinMinute  *int
}

// Schedulable reports whether the task has the minimum data Phase 1/2/3
// require: finite coordinates and a positive cleaning duration.
func (t Task) Schedulable() bool {
	if t.DurationMinutes <= 0 {
		return false
	}
	return !math.IsNaN(t.Coordinates.Lat) && !math.IsInf(t.Coordinates.Lat, 0) &&
		!math.IsNaN(t.Coordinates.Lon) && !math.IsInf(t.Coordinates.Lon, 0)
}

// NormalizedApartmentType upper-cases and trims the apartment type tag, per
// the Phase 2 compatibility rule.
func (t Task) NormalizedApartmentType() ApartmentType {
	return ApartmentType(strings.ToUpper(strings.TrimSpace(string(t.ApartmentType))))
}

// CoerceBool implements the ingestion-boundary boolean coercion rule: it
// accepts true/"true"/"1"/"yes" (case- and whitespace-insensitive) and any
// non-zero number as true; everything else is false. This function is the
// only place that rule is allowed to run — core phase logic must never
// re-derive booleans from raw input.
func CoerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		switch s {
		case "true", "1", "yes":
			return true
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n != 0
		}
		return false
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case float32:
		return val != 0
	case float64:
		return val != 0
	default:
		return false
	}
}

// FlexBool is a boolean that unmarshals from JSON numbers, strings, or
// booleans using CoerceBool. It exists only at the ingestion boundary;
// downstream code should read it once into a plain bool (domain.Task.Premium
// etc.) and never carry FlexBool into phase logic.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*b = FlexBool(f != 0)
		return nil
	}

	*b = FlexBool(CoerceBool(s))
	return nil
}

// Bool returns the plain bool value.
func (b FlexBool) Bool() bool { return bool(b) }
