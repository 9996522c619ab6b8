package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// statusTransitions lists the allowed moves. Cancelled and rescheduled are
// terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusRescheduled},
}

// CanTransition checks if the move from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsFinal reports whether no further transitions exist from s.
func (s Status) IsFinal() bool {
	return len(statusTransitions[s]) == 0
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

var statusAliases = map[string]Status{
	"pending":     StatusPending,
	"pendente":    StatusPending,
	"confirmed":   StatusConfirmed,
	"confirmado":  StatusConfirmed,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
	"cancelado":   StatusCancelled,
	"rescheduled": StatusRescheduled,
	"reagendado":  StatusRescheduled,
}

// NormalizeStatus maps stored status strings, including the free-form
// Portuguese variants found in older rows, onto Status.
func NormalizeStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if st, ok := statusAliases[s]; ok {
		return st, nil
	}
	switch {
	case strings.Contains(s, "cancel"):
		return StatusCancelled, nil
	case strings.Contains(s, "reagend"), strings.Contains(s, "reschedul"):
		return StatusRescheduled, nil
	// "agendado - pendente de confirmação" also contains "confirm"
	case strings.Contains(s, "pendente"), strings.Contains(s, "pending"):
		return StatusPending, nil
	case strings.Contains(s, "confirm"):
		return StatusConfirmed, nil
	}
	return "", fmt.Errorf("unknown booking status %q", raw)
}
