package models

import (
	"fmt"
	"strings"
)

// Priority orders tasks competing for the radio. Higher values run first.
type Priority int

// const ...
const (
	PriorityTrivial  Priority = iota // scanning
	PriorityLow                      // normal reads and writes
	PriorityMedium                   // explicit connecting and bonding
	PriorityHigh                     // implicit connecting and bonding, e.g. came back into range
	PriorityCritical                 // radio on/off, forced disconnects and unbonds, resets
)

// Named bands used by the rest of the system.
const (
	PriorityForNormalReadsWrites            = PriorityLow
	PriorityForExplicitBondingAndConnecting = PriorityMedium
	PriorityForPriorityReadsWrites          = PriorityMedium
	PriorityForImplicitBondingAndConnecting = PriorityHigh
)

var priorityNames = [...]string{
	PriorityTrivial:  "trivial",
	PriorityLow:      "low",
	PriorityMedium:   "medium",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// Valid reports whether p is one of the five defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityTrivial && p <= PriorityCritical
}

// ParsePriority maps a case-insensitive level name to its Priority.
func ParsePriority(name string) (Priority, error) {
	for i, n := range priorityNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, name)
}
