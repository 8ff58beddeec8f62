// Package journal persists a small observation log across restarts:
// the last resolved public IP and the last pass summary. It exists for
// logging and metrics only; reconciliation decisions never read it.
package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/evanofslack/dyndns-sync/internal/metrics"
)

const observationKey = "observation:last"

type Observation struct {
	PublicIP    string `json:"publicIp"`
	Added       int    `json:"added"`
	Removed     int    `json:"removed"`
	Failed      int    `json:"failed"`
	CompletedAt int64  `json:"completedAt"`
}

type Journal interface {
	Last(ctx context.Context) (Observation, bool, error)
	Record(ctx context.Context, obs Observation) error
	Close() error
}

type badgerJournal struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

func New(path string, metrics *metrics.Metrics) (Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	j := &badgerJournal{db: db, metrics: metrics}
	return j, nil
}

func (j *badgerJournal) Last(ctx context.Context) (Observation, bool, error) {
	var obs Observation
	found := false

	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(observationKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &obs)
		})
	})
	j.metrics.IncJournalRequest("read", err == nil)
	return obs, found, err
}

func (j *badgerJournal) Record(ctx context.Context, obs Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		j.metrics.IncJournalRequest("write", false)
		return err
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(observationKey), data)
	})
	j.metrics.IncJournalRequest("write", err == nil)
	return err
}

func (j *badgerJournal) Close() error {
	return j.db.Close()
}
