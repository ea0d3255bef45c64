package model

import "time"

type CampaignStatus string

const (
	StatusRunning CampaignStatus = "running"
	StatusDone    CampaignStatus = "done"
	StatusStopped CampaignStatus = "stopped"
	StatusFailed  CampaignStatus = "failed"
)

// Finding is the canonical record every tool row is converted into.
// Never mutated after creation within a run.
type Finding struct {
	Tool        string  `json:"tool"`
	NativeID    string  `json:"native_id"`
	Host        string  `json:"host"`
	Port        string  `json:"port"`
	Method      string  `json:"method,omitempty"`
	URL         string  `json:"url,omitempty"`
	Severity    string  `json:"severity,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Summary     string  `json:"summary,omitempty"`
	Remediation string  `json:"remediation,omitempty"`
	MID         string  `json:"mid"`
	DID         string  `json:"did"`
}

// CampaignSummary is written to counts.json once per campaign.
type CampaignSummary struct {
	HostsCount       int `json:"hosts_count"`
	AppsCount        int `json:"apps_count"`
	OSCount          int `json:"os_count"`
	HighCount        int `json:"high_count"`
	MediumCount      int `json:"medium_count"`
	LowCount         int `json:"low_count"`
	ExploitedCVEs    int `json:"exploitedcves,omitempty"`
	IncompatibleCVEs int `json:"incompatiblecves,omitempty"`
}

// HistoricalSample is one append-only trend entry in historical_results.json.
type HistoricalSample struct {
	Timestamp   time.Time `json:"timestamp"`
	HighCount   int       `json:"high_count"`
	MediumCount int       `json:"medium_count"`
	LowCount    int       `json:"low_count"`
}

// CampaignRecord tracks one campaign for the HTTP shim.
type CampaignRecord struct {
	ID         string           `json:"id"`
	TaskName   string           `json:"task_name"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Status     CampaignStatus   `json:"status"`
	Lines      []string         `json:"lines,omitempty"`
	Summary    *CampaignSummary `json:"summary,omitempty"`
	CSVPath    string           `json:"csv_path,omitempty"`
	PDFPath    string           `json:"pdf_path,omitempty"`
}
