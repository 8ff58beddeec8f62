package provider

import (
	"context"
	"errors"
)

// ErrAPIFailure marks a provider response that was transported fine but
// semantically rejected (result != "success").
var ErrAPIFailure = errors.New("provider api response indicates failure")

// Client is the capability the reconciliation engine depends on.
// None of the operations are guaranteed idempotent by the provider;
// callers must match before they act.
type Client interface {
	ListRecords(ctx context.Context, zone string) ([]Record, error)
	AddRecord(ctx context.Context, name, recordType, value string) error
	RemoveRecord(ctx context.Context, record Record) error
}

// Record is a record as it exists at the provider. Name is fully
// qualified as returned by the provider.
type Record struct {
	Name  string
	Type  string
	Value string
}
