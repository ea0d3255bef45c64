// Package runner shells out to the auxiliary scanners. Each subpackage wraps
// one external binary: it scans every target in turn, merges the per-target
// outputs into a single combined file and removes the individual ones. The
// contract with the rest of the pipeline is just the combined file path.
package runner

import "context"

// Runner executes one auxiliary scanner over a target list and returns the
// path of the combined output file.
type Runner interface {
	Run(ctx context.Context, targets []string) (string, error)
}
