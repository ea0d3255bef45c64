package campaign

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LukeyBoyy/MedusaGuard/internal/config"
	"github.com/LukeyBoyy/MedusaGuard/internal/exploit"
	"github.com/LukeyBoyy/MedusaGuard/internal/gmp"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
	"github.com/LukeyBoyy/MedusaGuard/internal/openvas"
)

const reportCSV = `IP,Port,NVT OID,Severity,CVSS,NVT Name,Solution
10.0.0.1,443/tcp,1.3.6.1.4.1.25623.1.0.1001,High,9.8,Outdated TLS stack,Upgrade
10.0.0.3,443/tcp,1.3.6.1.4.1.25623.1.0.1001,High,9.8,Outdated TLS stack,Upgrade
10.0.0.2,80/tcp,1.3.6.1.4.1.25623.1.0.1002,Medium,5.3,Directory listing,Disable listing
10.0.0.1,22/tcp,1.3.6.1.4.1.25623.1.0.1003,Log,0.0,Service banner,None
10.0.0.2,22/tcp,1.3.6.1.4.1.25623.1.0.1004,Log,0.0,Service banner,None
`

const summaryXML = `<report><report>
<hosts><count>3</count></hosts>
<os><count>2</count></os>
<apps><count>4</count></apps>
<results>
<result><original_threat>High</original_threat></result>
<result><original_threat>High</original_threat></result>
<result><original_threat>Medium</original_threat></result>
<result><original_threat>Log</original_threat></result>
<result><original_threat>Log</original_threat></result>
</results>
</report></report>`

type fakeGMP struct {
	statuses []string
	statusAt int
}

func (f *fakeGMP) Authenticate(username, password string) error { return nil }
func (f *fakeGMP) ListTargets() ([]gmp.Target, error)           { return nil, nil }
func (f *fakeGMP) CreateTarget(name string, hosts []string, portListID string) (string, error) {
	return "t1", nil
}
func (f *fakeGMP) CreateTask(name, scanConfigID, targetID, scannerID string) (string, error) {
	return "task1", nil
}
func (f *fakeGMP) StartTask(taskID string) (string, error) { return "r1", nil }
func (f *fakeGMP) TaskStatus(taskID string) (string, error) {
	if f.statusAt >= len(f.statuses) {
		return gmp.StatusDone, nil
	}
	s := f.statuses[f.statusAt]
	f.statusAt++
	return s, nil
}
func (f *fakeGMP) FetchReport(reportID, formatID string) ([]byte, error) {
	switch formatID {
	case gmp.ReportFormatXML:
		return []byte(summaryXML), nil
	default:
		// attachments carry the base64 payload directly inside the report
		// element, after the report_format child
		payload := base64.StdEncoding.EncodeToString([]byte(reportCSV))
		if formatID == gmp.ReportFormatPDF {
			payload = base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
		}
		return []byte(fmt.Sprintf(`<report id="r1"><report_format/>%s</report>`, payload)), nil
	}
}
func (f *fakeGMP) Close() error { return nil }

type fakeExploit struct {
	exploited    int
	incompatible int
}

func (f fakeExploit) Run(ctx context.Context, csvPath string) (exploit.Result, error) {
	return exploit.Result{Exploited: f.exploited, Incompatible: f.incompatible}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	hosts := filepath.Join(dir, "targets.txt")
	if err := os.WriteFile(hosts, []byte("10.0.0.1\n10.0.0.2\n10.0.0.3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Connection = config.ConnectionConfig{SocketPath: "/tmp/unused.sock", Username: "admin", Password: "secret"}
	cfg.Target = config.TargetConfig{Name: "lab", HostsFile: hosts, PortListID: "pl"}
	cfg.Task = config.TaskConfig{Name: "nightly", ScanConfigID: "cfg", ScannerID: "scn"}
	cfg.Report.ReportsDir = filepath.Join(dir, "openvas_reports")
	cfg.Report.CountsFile = filepath.Join(dir, "counts.json")
	cfg.Report.HistoryFile = filepath.Join(dir, "historical_results.json")
	cfg.Report.VulnMappingFile = filepath.Join(dir, "vuln_mapping.json")
	cfg.Report.FindingMappingFile = filepath.Join(dir, "finding_mapping.json")
	return cfg
}

func testAggregator(cfg *config.Config, client gmp.Client) *Aggregator {
	ctrl := openvas.NewController(gmp.ConnConfig{SocketPath: "/tmp/unused.sock"}, "admin", "secret",
		cfg.Report.ReportsDir, time.Millisecond)
	ctrl.SettleDelay = 0
	ctrl.Dial = func(gmp.ConnConfig) (gmp.Client, error) { return client, nil }

	return &Aggregator{
		Config:  cfg,
		Scan:    ctrl,
		Exploit: fakeExploit{exploited: 1, incompatible: 2},
	}
}

func TestRunFullCampaign(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeGMP{statuses: []string{"Requested", "Running", gmp.StatusDone}}
	a := testAggregator(cfg, client)

	lines := make(chan string, 32)
	a.Notify = lines

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Status != model.StatusDone {
		t.Fatalf("status = %q, want done", out.Status)
	}
	if out.Summary.HostsCount != 3 {
		t.Errorf("hosts count = %d, want 3 (from the XML summary, not the CSV)", out.Summary.HostsCount)
	}
	if out.Summary.HighCount != 2 || out.Summary.MediumCount != 1 || out.Summary.LowCount != 0 {
		t.Errorf("severity counts = %d/%d/%d, want 2/1/0",
			out.Summary.HighCount, out.Summary.MediumCount, out.Summary.LowCount)
	}
	if out.Summary.ExploitedCVEs != 1 || out.Summary.IncompatibleCVEs != 2 {
		t.Errorf("exploit counts = %d/%d, want 1/2",
			out.Summary.ExploitedCVEs, out.Summary.IncompatibleCVEs)
	}

	// counts.json mirrors the summary
	data, err := os.ReadFile(cfg.Report.CountsFile)
	if err != nil {
		t.Fatalf("counts file: %v", err)
	}
	var persisted model.CampaignSummary
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatal(err)
	}
	if persisted != out.Summary {
		t.Errorf("persisted summary %+v != returned %+v", persisted, out.Summary)
	}

	// exactly one trend sample with the campaign's counts
	histData, err := os.ReadFile(cfg.Report.HistoryFile)
	if err != nil {
		t.Fatalf("history file: %v", err)
	}
	var samples []model.HistoricalSample
	if err := json.Unmarshal(histData, &samples); err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 {
		t.Fatalf("history has %d samples, want 1", len(samples))
	}
	if samples[0].HighCount != 2 || samples[0].MediumCount != 1 || samples[0].LowCount != 0 {
		t.Errorf("sample counts = %d/%d/%d, want 2/1/0",
			samples[0].HighCount, samples[0].MediumCount, samples[0].LowCount)
	}

	verifyAugmentedCSV(t, out.CSVPath)

	select {
	case <-lines:
	default:
		t.Error("expected at least one progress line")
	}
}

// verifyAugmentedCSV checks the normalized report: all five rows carry IDs,
// the two rows for the same plugin share a MID but not a DID.
func verifyAugmentedCSV(t *testing.T, path string) {
	t.Helper()
	if path == "" {
		t.Fatal("no CSV path in outcome")
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	header := rows[0]
	midIdx, didIdx := -1, -1
	for i, h := range header {
		switch h {
		case "MID":
			midIdx = i
		case "DID":
			didIdx = i
		}
	}
	if midIdx < 0 || didIdx < 0 {
		t.Fatalf("MID/DID columns missing from header %v", header)
	}
	if len(rows) != 6 {
		t.Fatalf("augmented CSV has %d rows, want header + 5", len(rows))
	}

	mids := map[string][]string{}
	dids := map[string]int{}
	for _, row := range rows[1:] {
		if row[midIdx] == "" || row[didIdx] == "" {
			t.Errorf("row %v missing MID/DID", row)
		}
		oid := row[2]
		mids[oid] = append(mids[oid], row[midIdx])
		dids[row[didIdx]]++
	}

	shared := mids["1.3.6.1.4.1.25623.1.0.1001"]
	if len(shared) != 2 || shared[0] != shared[1] {
		t.Errorf("same plugin on two hosts should share one MID, got %v", shared)
	}
	if len(mids) != 4 {
		t.Errorf("expected 4 distinct plugins, got %d", len(mids))
	}
	for did, n := range dids {
		if n != 1 {
			t.Errorf("DID %s assigned to %d rows", did, n)
		}
	}
}

func TestRunStoppedScanSkipsDownstream(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeGMP{statuses: []string{"Running", gmp.StatusStopped}}
	a := testAggregator(cfg, client)

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != model.StatusStopped {
		t.Fatalf("status = %q, want stopped", out.Status)
	}
	if _, err := os.Stat(cfg.Report.HistoryFile); !os.IsNotExist(err) {
		t.Error("stopped campaign must not append to the trend series")
	}
	if _, err := os.Stat(cfg.Report.CountsFile); !os.IsNotExist(err) {
		t.Error("stopped campaign must not write counters")
	}
}

func TestRunWithoutCSVWritesCountersOnly(t *testing.T) {
	cfg := testConfig(t)
	client := &noCSVClient{fakeGMP: fakeGMP{statuses: []string{gmp.StatusDone}}}
	a := testAggregator(cfg, client)

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.CSVPath != "" {
		t.Fatalf("expected empty CSV path, got %q", out.CSVPath)
	}

	if _, err := os.Stat(cfg.Report.CountsFile); err != nil {
		t.Error("counters should be written even without a CSV report")
	}
	if _, err := os.Stat(cfg.Report.HistoryFile); !os.IsNotExist(err) {
		t.Error("trend series must not grow without findings")
	}
}

type noCSVClient struct{ fakeGMP }

func (c *noCSVClient) FetchReport(reportID, formatID string) ([]byte, error) {
	if formatID == gmp.ReportFormatCSV {
		return nil, fmt.Errorf("csv format unavailable")
	}
	return c.fakeGMP.FetchReport(reportID, formatID)
}
