// Package openvas drives one scan through the remote GVM engine: resolve or
// create the target, create and start a task, poll it to a terminal state,
// and retrieve the summary, PDF and CSV reports.
package openvas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/LukeyBoyy/MedusaGuard/internal/gmp"
	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/helper"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
)

// Params names the scan to run. IDs are GVM references, not user text.
type Params struct {
	TargetName   string
	HostsFile    string
	PortListID   string
	TaskName     string
	ScanConfigID string
	ScannerID    string
}

// Result is what one completed (or abandoned) scan hands to the aggregator.
// An empty CSVPath means no findings are available and downstream stages
// must be skipped, not failed.
type Result struct {
	CSVPath     string
	PDFPath     string
	TaskName    string
	Status      string
	HostsCount  int
	AppsCount   int
	OSCount     int
	HighCount   int
	MediumCount int
	LowCount    int
}

// Controller owns the Target/Task/Report lifecycle for the duration of one
// campaign.
type Controller struct {
	Conn         gmp.ConnConfig
	Username     string
	Password     string
	ReportsDir   string
	PollInterval time.Duration
	// SettleDelay gives gvmd a moment between task creation and start.
	SettleDelay time.Duration

	// Dial is a seam for tests.
	Dial func(gmp.ConnConfig) (gmp.Client, error)

	log *zap.SugaredLogger
}

// NewController wires a controller against the real socket client.
func NewController(conn gmp.ConnConfig, username, password, reportsDir string, pollInterval time.Duration) *Controller {
	return &Controller{
		Conn:         conn,
		Username:     username,
		Password:     password,
		ReportsDir:   reportsDir,
		PollInterval: pollInterval,
		SettleDelay:  5 * time.Second,
		Dial: func(cfg gmp.ConnConfig) (gmp.Client, error) {
			return gmp.Dial(cfg)
		},
		log: logging.Sugar(),
	}
}

// RunScan executes the full lifecycle. Transport and configuration failures
// abort with an error; per-artifact retrieval failures degrade and are only
// logged.
func (c *Controller) RunScan(ctx context.Context, p Params) (*Result, error) {
	if c.log == nil {
		c.log = logging.Sugar()
	}

	hosts, err := helper.ReadHostsFile(p.HostsFile)
	if err != nil {
		return nil, err
	}

	// connection timeout proportional to campaign size: one hour per host.
	// This bounds the transport, not the scan.
	conn := c.Conn
	conn.Timeout = time.Duration(len(hosts)) * time.Hour
	if conn.Timeout < time.Hour {
		conn.Timeout = time.Hour
	}

	client, err := c.Dial(conn)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.Authenticate(c.Username, c.Password); err != nil {
		return nil, err
	}
	c.log.Info("openvas: authenticated with Greenbone")

	targetID, err := c.resolveTarget(client, p.TargetName, hosts, p.PortListID)
	if err != nil {
		return nil, err
	}

	taskID, err := client.CreateTask(p.TaskName, p.ScanConfigID, targetID, p.ScannerID)
	if err != nil {
		return nil, err
	}
	c.log.Infof("openvas: task created with ID %s", taskID)

	if c.SettleDelay > 0 {
		time.Sleep(c.SettleDelay)
	}

	reportID, err := client.StartTask(taskID)
	if err != nil {
		return nil, err
	}
	c.log.Infof("openvas: task %s started, report %s", taskID, reportID)

	status, err := c.waitForTerminal(ctx, client, taskID)
	if err != nil {
		return nil, err
	}
	c.log.Infof("openvas: scan completed, status %s", status)

	res := &Result{TaskName: p.TaskName, Status: status}
	if status != gmp.StatusDone {
		// Stopped or Failed: no report artifacts to collect
		return res, nil
	}

	c.collectReports(client, reportID, p.TaskName, res)
	return res, nil
}

// resolveTarget reuses an existing target with the given name or creates a
// new one. Never creates duplicates for the same name within a run.
func (c *Controller) resolveTarget(client gmp.Client, name string, hosts []string, portListID string) (string, error) {
	targets, err := client.ListTargets()
	if err != nil {
		return "", err
	}
	for _, t := range targets {
		if t.Name == name {
			c.log.Infof("openvas: target %s already exists with ID %s", name, t.ID)
			return t.ID, nil
		}
	}

	c.log.Infof("openvas: target %s does not exist yet, creating it", name)
	id, err := client.CreateTarget(name, hosts, portListID)
	if err != nil {
		return "", err
	}
	c.log.Infof("openvas: created target with ID %s", id)
	return id, nil
}

// waitForTerminal polls the task status at a fixed interval until it reaches
// Done, Stopped or Failed. The only other way out is cancellation or a
// transport failure.
func (c *Controller) waitForTerminal(ctx context.Context, client gmp.Client, taskID string) (string, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return "", guarderr.E("openvas.waitForTerminal", guarderr.KindTransport, "campaign cancelled", ctx.Err())
		case <-time.After(interval):
		}

		status, err := client.TaskStatus(taskID)
		if err != nil {
			return "", err
		}
		if gmp.Terminal(status) {
			return status, nil
		}
		c.log.Debugf("openvas: task %s status %s", taskID, status)
	}
}

// collectReports fetches the three report formats. Each retrieval is
// independent: a PDF failure must not prevent CSV retrieval and vice versa.
func (c *Controller) collectReports(client gmp.Client, reportID, taskName string, res *Result) {
	helper.EnsureDir(c.ReportsDir)
	stamp := time.Now().Format("2006-01-02_15-04-05")
	safeTask := helper.SanitizeFilename(taskName)

	if raw, err := client.FetchReport(reportID, gmp.ReportFormatXML); err != nil {
		c.log.Errorf("openvas: unable to fetch report summary: %v", err)
	} else if summary, err := gmp.ParseSummary(raw); err != nil {
		c.log.Errorf("openvas: unable to parse report summary: %v", err)
	} else {
		res.HostsCount = summary.HostsCount
		res.AppsCount = summary.AppsCount
		res.OSCount = summary.OSCount
		res.HighCount = summary.HighCount
		res.MediumCount = summary.MediumCount
		res.LowCount = summary.LowCount
	}

	if pdf, err := c.fetchAttachment(client, reportID, gmp.ReportFormatPDF); err != nil {
		c.log.Errorf("openvas: failed to download PDF report: %v", err)
	} else {
		path := filepath.Join(c.ReportsDir, fmt.Sprintf("openvas_%s_report_%s.pdf", safeTask, stamp))
		if err := os.WriteFile(path, pdf, 0o644); err != nil {
			c.log.Errorf("openvas: failed to write PDF report %s: %v", path, err)
		} else {
			res.PDFPath = path
			c.log.Infof("openvas: PDF report downloaded as %s", path)
		}
	}

	if csvData, err := c.fetchAttachment(client, reportID, gmp.ReportFormatCSV); err != nil {
		c.log.Errorf("openvas: failed to download CSV report: %v", err)
	} else {
		path := filepath.Join(c.ReportsDir, fmt.Sprintf("%s_report_%s.csv", safeTask, stamp))
		if err := os.WriteFile(path, csvData, 0o644); err != nil {
			c.log.Errorf("openvas: failed to write CSV report %s: %v", path, err)
		} else {
			res.CSVPath = path
			c.log.Infof("openvas: CSV report downloaded as %s", path)
		}
	}
}

func (c *Controller) fetchAttachment(client gmp.Client, reportID, formatID string) ([]byte, error) {
	raw, err := client.FetchReport(reportID, formatID)
	if err != nil {
		return nil, err
	}
	return gmp.DecodeAttachment(raw)
}
