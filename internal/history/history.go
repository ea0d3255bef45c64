// Package history keeps the append-only severity trend log driving the
// dashboard chart. The store is a dumb log: it neither sorts nor de-dupes;
// a renderer sorts by timestamp before plotting.
package history

import (
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
)

type Store struct {
	path string
	log  *zap.SugaredLogger
}

func New(path string) *Store {
	return &Store{path: path, log: logging.Sugar()}
}

// Load returns the full series. A missing store is an empty series; a
// corrupt one is logged and also treated as empty. Trend history is
// best-effort, never blocking.
func (s *Store) Load() []model.HistoricalSample {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Errorf("history: unreadable store %s, treating as empty: %v", s.path, err)
		}
		return nil
	}

	var samples []model.HistoricalSample
	if err := json.Unmarshal(data, &samples); err != nil {
		s.log.Errorf("history: corrupt store %s, treating as empty: %v", s.path, err)
		return nil
	}
	return samples
}

// Append adds one sample and persists the whole series back. A zero ts means
// "now".
func (s *Store) Append(high, medium, low int, ts time.Time) ([]model.HistoricalSample, error) {
	if ts.IsZero() {
		ts = time.Now()
	}

	samples := append(s.Load(), model.HistoricalSample{
		Timestamp:   ts,
		HighCount:   high,
		MediumCount: medium,
		LowCount:    low,
	})

	data, err := json.MarshalIndent(samples, "", "    ")
	if err != nil {
		return samples, guarderr.E("history.Append", guarderr.KindPersistence, "marshal series", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return samples, guarderr.E("history.Append", guarderr.KindPersistence, "write store "+s.path, err)
	}
	return samples, nil
}
