package plans

import "fmt"

// LimitError is a structured entitlement denial. It carries the dimension
// and the ceiling so the caller can render an upgrade prompt with the
// specific limit rather than a bare rejection.
type LimitError struct {
	Dimension string `json:"dimension"` // "servers", "plans", "reports"
	Limit     int    `json:"limit"`
	Value     int    `json:"value"` // attempted total or current counter
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit_%s: %d exceeds plan limit %d", e.Dimension, e.Value, e.Limit)
}

// Code returns the wire error code, e.g. "limit_servers".
func (e *LimitError) Code() string {
	return "limit_" + e.Dimension
}

// IsWithinLimit reports whether a declared total is allowed under a limit.
// The check is inclusive: declaring exactly the ceiling is allowed. Used
// for set-to dimensions (servers, plans).
func IsWithinLimit(limit, value int) bool {
	return limit == Unlimited || value <= limit
}

// IsUnderLimit reports whether one more increment is allowed under a limit.
// The check is exclusive: a counter already at the ceiling is denied. Used
// for monotonic counters (reports).
func IsUnderLimit(limit, current int) bool {
	return limit == Unlimited || current < limit
}

// CheckDeclared returns a LimitError if value exceeds limit for the given
// dimension, nil otherwise.
func CheckDeclared(dimension string, limit, value int) error {
	if IsWithinLimit(limit, value) {
		return nil
	}
	return &LimitError{Dimension: dimension, Limit: limit, Value: value}
}

// CheckIncrement returns a LimitError if the counter may not be incremented.
func CheckIncrement(dimension string, limit, current int) error {
	if IsUnderLimit(limit, current) {
		return nil
	}
	return &LimitError{Dimension: dimension, Limit: limit, Value: current}
}
