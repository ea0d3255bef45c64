// Package store keeps campaign records in memory for the HTTP shim.
package store

import (
	"sync"

	"github.com/LukeyBoyy/MedusaGuard/internal/model"
)

var (
	mu      sync.RWMutex
	records map[string]model.CampaignRecord
)

func Init() {
	mu.Lock()
	defer mu.Unlock()
	records = make(map[string]model.CampaignRecord)
}

func Set(id string, rec model.CampaignRecord) {
	mu.Lock()
	defer mu.Unlock()
	records[id] = rec
}

func Get(id string) (model.CampaignRecord, bool) {
	mu.RLock()
	defer mu.RUnlock()
	rec, ok := records[id]
	return rec, ok
}

// SetStatus updates only the status of an existing record.
func SetStatus(id string, status model.CampaignStatus) {
	mu.Lock()
	defer mu.Unlock()
	if rec, ok := records[id]; ok {
		rec.Status = status
		records[id] = rec
	}
}

// AppendLine attaches one progress line to the record.
func AppendLine(id, line string) {
	mu.Lock()
	defer mu.Unlock()
	if rec, ok := records[id]; ok {
		rec.Lines = append(rec.Lines, line)
		records[id] = rec
	}
}
