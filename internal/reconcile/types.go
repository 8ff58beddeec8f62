package reconcile

import (
	"github.com/evanofslack/dyndns-sync/internal/provider"
)

// Outcome of one removal or add step for one configured record.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

type Results struct {
	Added       []provider.Record
	Removed     []provider.Record
	Skipped     int
	Failures    []OperationResult
	FailedZones []string
}

type OperationResult struct {
	Zone  string
	Name  string
	Type  string
	Op    string
	Error string
}
