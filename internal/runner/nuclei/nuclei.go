// Package nuclei shells out to the nuclei binary. Every target is probed
// with a set of protocol variants and the per-variant outputs are merged
// into a single text file.
package nuclei

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/helper"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
)

// seams for tests
var (
	execCommandContext = exec.CommandContext
	readFile           = os.ReadFile
	writeFile          = os.WriteFile
	removeFile         = os.Remove
)

const perCommandTimeout = time.Hour

type variant struct {
	name string
	args func(target string) []string
}

// variants mirror the protocol coverage of the scan playbook: raw network
// templates, default credentials, then one service probe per protocol.
var variants = []variant{
	{"network", func(t string) []string { return []string{"-target", t, "-t", "network/"} }},
	{"default_login", func(t string) []string { return []string{"-target", t, "-t", "network/default-login"} }},
	{"http", func(t string) []string { return []string{"-target", "http://" + t} }},
	{"ssh", func(t string) []string { return []string{"-target", "ssh://" + t} }},
	{"ftp", func(t string) []string { return []string{"-target", "ftp://" + t} }},
	{"smb", func(t string) []string { return []string{"-target", "smb://" + t} }},
}

// Runner combines all per-target, per-variant outputs into
// <stamp>_combined.txt inside OutputDir.
type Runner struct {
	OutputDir string

	log *zap.SugaredLogger
}

func New(outputDir string) *Runner {
	return &Runner{OutputDir: outputDir, log: logging.Sugar()}
}

func (r *Runner) Run(ctx context.Context, targets []string) (string, error) {
	if r.log == nil {
		r.log = logging.Sugar()
	}
	helper.EnsureDir(r.OutputDir)
	stamp := time.Now().Format("20060102_150405")
	r.log.Info("nuclei: vulnerability scan started")

	var combined bytes.Buffer
	found := false

	for _, target := range targets {
		for _, v := range variants {
			select {
			case <-ctx.Done():
				return "", guarderr.E("nuclei.Run", guarderr.KindTransport, "scan cancelled", ctx.Err())
			default:
			}

			outFile := filepath.Join(r.OutputDir,
				fmt.Sprintf("%s_%s.txt", helper.SanitizeFilename(target), v.name))
			r.log.Infof("nuclei: running %s scan on %s", v.name, target)

			args := append(v.args(target), "-o", outFile)
			runCtx, cancel := context.WithTimeout(ctx, perCommandTimeout)
			cmd := execCommandContext(runCtx, "nuclei", args...)
			output, err := cmd.CombinedOutput()
			cancel()
			if err != nil {
				r.log.Errorf("nuclei: %s scan of %s failed: %v (output: %s)", v.name, target, err, output)
			}

			data, err := readFile(outFile)
			if err != nil {
				r.log.Warnf("nuclei: no %s output produced for %s", v.name, target)
				continue
			}
			combined.Write(data)
			if len(bytes.TrimSpace(data)) > 0 {
				found = true
			}
			if err := removeFile(outFile); err != nil {
				r.log.Warnf("nuclei: failed to remove %s: %v", outFile, err)
			}
		}
	}

	if !found {
		return "", guarderr.E("nuclei.Run", guarderr.KindArtifact, "no nuclei results produced", nil)
	}

	combinedFile := filepath.Join(r.OutputDir, fmt.Sprintf("%s_combined.txt", stamp))
	if err := writeFile(combinedFile, combined.Bytes(), 0o644); err != nil {
		return "", guarderr.E("nuclei.Run", guarderr.KindArtifact, "write combined output", err)
	}
	r.log.Infof("nuclei: combined output saved to %s", combinedFile)
	r.log.Info("nuclei: all scans completed and files cleaned up")

	return combinedFile, nil
}
