// Package nikto shells out to the nikto binary once per target and merges
// the CSV outputs.
package nikto

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
	statFile           = os.Stat
	removeFile         = os.Remove
)

// perTargetTimeout bounds one nikto invocation.
const perTargetTimeout = time.Hour

// Runner scans every target on ports 80 and 443 and combines the per-target
// CSV reports into <stamp>_combined.csv inside OutputDir.
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
	r.log.Info("nikto: vulnerability scan started")

	var produced []string
	for _, target := range targets {
		select {
		case <-ctx.Done():
			return "", guarderr.E("nikto.Run", guarderr.KindTransport, "scan cancelled", ctx.Err())
		default:
		}

		outFile := filepath.Join(r.OutputDir,
			fmt.Sprintf("%s_%s.csv", helper.SanitizeFilename(target), stamp))
		r.log.Infof("nikto: scanning %s", target)

		runCtx, cancel := context.WithTimeout(ctx, perTargetTimeout)
		cmd := execCommandContext(runCtx, "nikto",
			"-h", target,
			"-nointeractive",
			"-p", "80,443",
			"-Format", "csv",
			"-output", outFile,
		)
		output, err := cmd.CombinedOutput()
		cancel()
		if err != nil {
			r.log.Errorf("nikto: scan of %s failed: %v (output: %s)", target, err, output)
		}

		if _, err := statFile(outFile); err != nil {
			r.log.Warnf("nikto: no report produced for %s", target)
			continue
		}
		produced = append(produced, outFile)
		r.log.Infof("nikto: results for %s saved to %s", target, outFile)
	}

	if len(produced) == 0 {
		return "", guarderr.E("nikto.Run", guarderr.KindArtifact, "no nikto reports produced", nil)
	}

	combined := filepath.Join(r.OutputDir, fmt.Sprintf("%s_combined.csv", stamp))
	if err := combine(combined, produced); err != nil {
		return "", guarderr.E("nikto.Run", guarderr.KindArtifact, "combine nikto reports", err)
	}
	r.log.Infof("nikto: combined output saved to %s", combined)

	for _, f := range produced {
		if err := removeFile(f); err != nil {
			r.log.Warnf("nikto: failed to remove %s: %v", f, err)
		}
	}
	r.log.Info("nikto: all scans completed and files cleaned up")

	return combined, nil
}

// combine keeps the header line of the first file and drops it from every
// subsequent one.
func combine(dest string, files []string) error {
	var buf bytes.Buffer
	for i, f := range files {
		data, err := readFile(f)
		if err != nil {
			return err
		}
		if i > 0 {
			if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
				data = data[idx+1:]
			} else {
				continue
			}
		}
		buf.Write(data)
	}
	return writeFile(dest, buf.Bytes(), 0o644)
}
