package types

import "time"

// CircuitState is the state of the failover controller
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitStatus is a read-only view of the failover controller
type CircuitStatus struct {
	State         CircuitState `json:"state"`
	FailureCount  int          `json:"failureCount"`
	LastFailureAt *time.Time   `json:"lastFailureAt"` // nil until the first failure
}
