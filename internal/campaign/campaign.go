// Package campaign runs one full scan campaign: the Greenbone scan, the
// auxiliary scanners, finding normalization, the exploit stage and the
// persisted counters. Individual stages degrade on failure; only transport
// and configuration errors abort the run.
package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/LukeyBoyy/MedusaGuard/internal/config"
	"github.com/LukeyBoyy/MedusaGuard/internal/exploit"
	"github.com/LukeyBoyy/MedusaGuard/internal/gmp"
	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/helper"
	"github.com/LukeyBoyy/MedusaGuard/internal/history"
	"github.com/LukeyBoyy/MedusaGuard/internal/identity"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
	niktonorm "github.com/LukeyBoyy/MedusaGuard/internal/normalize/nikto"
	nucleinorm "github.com/LukeyBoyy/MedusaGuard/internal/normalize/nuclei"
	openvasnorm "github.com/LukeyBoyy/MedusaGuard/internal/normalize/openvas"
	"github.com/LukeyBoyy/MedusaGuard/internal/openvas"
	"github.com/LukeyBoyy/MedusaGuard/internal/runner"
	runnernikto "github.com/LukeyBoyy/MedusaGuard/internal/runner/nikto"
	runnernuclei "github.com/LukeyBoyy/MedusaGuard/internal/runner/nuclei"
)

// scanRunner is the slice of the lifecycle controller the aggregator needs.
type scanRunner interface {
	RunScan(ctx context.Context, p openvas.Params) (*openvas.Result, error)
}

// Outcome is the result of one campaign.
type Outcome struct {
	Status     model.CampaignStatus
	Summary    model.CampaignSummary
	CSVPath    string
	PDFPath    string
	NiktoPath  string
	NucleiPath string
}

// Aggregator wires the pipeline stages together. Zero-value fields fall back
// to the configured defaults in New; tests replace them directly.
type Aggregator struct {
	Config *config.Config

	Scan         scanRunner
	NiktoRunner  runner.Runner
	NucleiRunner runner.Runner
	Exploit      exploit.Stage

	// Notify receives human-readable progress lines. Sends never block; a
	// slow consumer just misses lines.
	Notify chan<- string

	log *zap.SugaredLogger
}

// New builds an aggregator against the real scanners.
func New(cfg *config.Config) *Aggregator {
	a := &Aggregator{
		Config: cfg,
		Scan: openvas.NewController(
			gmp.ConnConfig{SocketPath: cfg.Connection.SocketPath, Addr: cfg.Connection.Addr},
			cfg.Connection.Username,
			cfg.Connection.Password,
			cfg.Report.ReportsDir,
			cfg.PollInterval(),
		),
		Exploit: exploit.NopStage{},
		log:     logging.Sugar(),
	}
	if cfg.Runner.NiktoEnabled {
		a.NiktoRunner = runnernikto.New(cfg.Runner.NiktoDir)
	}
	if cfg.Runner.NucleiEnabled {
		a.NucleiRunner = runnernuclei.New(cfg.Runner.NucleiDir)
	}
	return a
}

// Run executes the campaign from scan start to persisted counters.
func (a *Aggregator) Run(ctx context.Context) (*Outcome, error) {
	if a.log == nil {
		a.log = logging.Sugar()
	}
	cfg := a.Config

	a.notify("Greenbone vulnerability scan started")
	scan, err := a.Scan.RunScan(ctx, openvas.Params{
		TargetName:   cfg.Target.Name,
		HostsFile:    cfg.Target.HostsFile,
		PortListID:   cfg.Target.PortListID,
		TaskName:     cfg.Task.Name,
		ScanConfigID: cfg.Task.ScanConfigID,
		ScannerID:    cfg.Task.ScannerID,
	})
	if err != nil {
		a.notify("Greenbone scan failed")
		return nil, err
	}
	a.notify(fmt.Sprintf("Greenbone scan finished with status %s", scan.Status))

	out := &Outcome{
		Status:  statusOf(scan.Status),
		CSVPath: scan.CSVPath,
		PDFPath: scan.PDFPath,
		Summary: model.CampaignSummary{
			HostsCount:  scan.HostsCount,
			AppsCount:   scan.AppsCount,
			OSCount:     scan.OSCount,
			HighCount:   scan.HighCount,
			MediumCount: scan.MediumCount,
			LowCount:    scan.LowCount,
		},
	}

	if scan.Status != gmp.StatusDone {
		a.log.Warnf("campaign: scan ended with status %s, skipping downstream stages", scan.Status)
		return out, nil
	}

	alloc := identity.Open(cfg.Report.VulnMappingFile, cfg.Report.FindingMappingFile)

	// Without a findings CSV there is nothing to normalize, exploit or
	// record in the trend series. The summary counters still get written.
	if scan.CSVPath == "" {
		a.log.Warn("campaign: no CSV report available, skipping normalization and exploitation")
		a.notify("No CSV report available, skipping post-processing")
		if err := a.writeCounts(out.Summary); err != nil {
			a.log.Errorf("campaign: %v", err)
		}
		return out, nil
	}

	if err := a.checkCancelled(ctx); err != nil {
		return nil, err
	}

	a.notify("Normalizing scan results")
	if batch, err := openvasnorm.ProcessCSV(scan.CSVPath, alloc); err != nil {
		a.log.Errorf("campaign: normalize OpenVAS CSV: %v", err)
	} else {
		a.log.Infof("campaign: normalized %d OpenVAS findings (%d skipped)", len(batch.Findings), batch.Skipped)
	}

	a.runAuxiliary(ctx, alloc, out)

	if err := a.checkCancelled(ctx); err != nil {
		return nil, err
	}

	if a.Exploit != nil {
		a.notify("Running exploitation stage")
		if res, err := a.Exploit.Run(ctx, scan.CSVPath); err != nil {
			a.log.Errorf("campaign: exploit stage failed: %v", err)
		} else {
			out.Summary.ExploitedCVEs = res.Exploited
			out.Summary.IncompatibleCVEs = res.Incompatible
		}
	}

	if err := a.writeCounts(out.Summary); err != nil {
		a.log.Errorf("campaign: %v", err)
	}

	trend := history.New(cfg.Report.HistoryFile)
	if _, err := trend.Append(out.Summary.HighCount, out.Summary.MediumCount, out.Summary.LowCount, time.Time{}); err != nil {
		a.log.Errorf("campaign: append historical results: %v", err)
	}

	a.notify("Campaign completed")
	return out, nil
}

// runAuxiliary executes the optional nikto and nuclei stages. Their failures
// never abort the campaign.
func (a *Aggregator) runAuxiliary(ctx context.Context, alloc *identity.Allocator, out *Outcome) {
	targets, err := helper.ReadHostsFile(a.Config.Target.HostsFile)
	if err != nil {
		a.log.Errorf("campaign: %v", err)
		return
	}

	if a.NiktoRunner != nil {
		a.notify("Nikto vulnerability scan started")
		if combined, err := a.NiktoRunner.Run(ctx, targets); err != nil {
			a.log.Errorf("campaign: nikto stage failed: %v", err)
		} else if batch, err := niktonorm.ProcessCSV(combined, alloc); err != nil {
			a.log.Errorf("campaign: normalize nikto CSV: %v", err)
		} else {
			out.NiktoPath = combined
			a.log.Infof("campaign: normalized %d nikto findings (%d skipped)", len(batch.Findings), batch.Skipped)
		}
	}

	if a.NucleiRunner != nil {
		a.notify("Nuclei vulnerability scan started")
		if combined, err := a.NucleiRunner.Run(ctx, targets); err != nil {
			a.log.Errorf("campaign: nuclei stage failed: %v", err)
		} else if batch, normalized, err := nucleinorm.ProcessOutput(combined, alloc); err != nil {
			a.log.Errorf("campaign: normalize nuclei output: %v", err)
		} else {
			out.NucleiPath = normalized
			a.log.Infof("campaign: normalized %d nuclei findings (%d skipped)", len(batch.Findings), batch.Skipped)
		}
	}
}

func (a *Aggregator) writeCounts(summary model.CampaignSummary) error {
	data, err := json.MarshalIndent(summary, "", "    ")
	if err != nil {
		return guarderr.E("campaign.writeCounts", guarderr.KindPersistence, "marshal counts", err)
	}
	if err := os.WriteFile(a.Config.Report.CountsFile, data, 0o644); err != nil {
		return guarderr.E("campaign.writeCounts", guarderr.KindPersistence, "write "+a.Config.Report.CountsFile, err)
	}
	return nil
}

func (a *Aggregator) checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		a.notify("Campaign cancelled")
		return guarderr.E("campaign.Run", guarderr.KindTransport, "campaign cancelled", ctx.Err())
	default:
		return nil
	}
}

func (a *Aggregator) notify(line string) {
	if a.Notify == nil {
		return
	}
	select {
	case a.Notify <- line:
	default:
	}
}

func statusOf(scanStatus string) model.CampaignStatus {
	switch scanStatus {
	case gmp.StatusDone:
		return model.StatusDone
	case gmp.StatusStopped:
		return model.StatusStopped
	default:
		return model.StatusFailed
	}
}
