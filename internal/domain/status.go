package domain

import "strings"

// ReorderStatus is the classification of a product's stock against its thresholds.
type ReorderStatus string

const (
	StatusOK          ReorderStatus = "OK"
	StatusApproaching ReorderStatus = "APPROACHING"
	StatusLow         ReorderStatus = "LOW"
)

var reorderStatusLabels = map[ReorderStatus]string{
	StatusOK:          "OK",
	StatusApproaching: "Approaching minimum",
	StatusLow:         "Low stock",
}

// Label returns a human-readable label for the status.
func (s ReorderStatus) Label() string {
	if label, ok := reorderStatusLabels[s]; ok {
		return label
	}

	return string(s)
}

// IsAlerting reports whether the status is one that raises a stock alert.
func (s ReorderStatus) IsAlerting() bool {
	return s == StatusApproaching || s == StatusLow
}

// ParseReorderStatus returns the status for a given value (case-insensitive).
func ParseReorderStatus(value string) (ReorderStatus, bool) {
	status := ReorderStatus(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := reorderStatusLabels[status]

	return status, ok
}
