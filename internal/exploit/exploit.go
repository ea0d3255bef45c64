// Package exploit defines the post-scan validation stage. The default stage
// performs no exploitation; deployments that carry a Metasploit bridge plug
// their own Stage in.
package exploit

import "context"

// Result summarises an exploitation pass over the normalized findings.
type Result struct {
	Exploited    int
	Incompatible int
	ReportPath   string
}

// Stage consumes the normalized OpenVAS CSV and attempts to validate
// findings against live targets.
type Stage interface {
	Run(ctx context.Context, csvPath string) (Result, error)
}

// NopStage satisfies Stage without touching any target. Both counters stay
// at zero.
type NopStage struct{}

func (NopStage) Run(ctx context.Context, csvPath string) (Result, error) {
	return Result{}, nil
}
