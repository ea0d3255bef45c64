package openvas

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LukeyBoyy/MedusaGuard/internal/gmp"
)

type mockClient struct {
	targets  []gmp.Target
	statuses []string
	statusAt int

	createdTarget bool
	createdTask   bool
	started       bool

	reports  map[string][]byte
	fetched  []string
	fetchErr map[string]error
}

func (m *mockClient) Authenticate(username, password string) error { return nil }

func (m *mockClient) ListTargets() ([]gmp.Target, error) { return m.targets, nil }

func (m *mockClient) CreateTarget(name string, hosts []string, portListID string) (string, error) {
	m.createdTarget = true
	return "target-new", nil
}

func (m *mockClient) CreateTask(name, scanConfigID, targetID, scannerID string) (string, error) {
	m.createdTask = true
	return "task-1", nil
}

func (m *mockClient) StartTask(taskID string) (string, error) {
	m.started = true
	return "report-1", nil
}

func (m *mockClient) TaskStatus(taskID string) (string, error) {
	if m.statusAt >= len(m.statuses) {
		return gmp.StatusDone, nil
	}
	s := m.statuses[m.statusAt]
	m.statusAt++
	return s, nil
}

func (m *mockClient) FetchReport(reportID, formatID string) ([]byte, error) {
	m.fetched = append(m.fetched, formatID)
	if err := m.fetchErr[formatID]; err != nil {
		return nil, err
	}
	return m.reports[formatID], nil
}

func (m *mockClient) Close() error { return nil }

// wrap encodes a payload the way get_reports delivers attachments: base64
// character data directly inside the report element, after report_format.
func wrap(payload string) []byte {
	enc := base64.StdEncoding.EncodeToString([]byte(payload))
	return []byte(fmt.Sprintf(`<report id="r1" format_id="f"><report_format/>%s</report>`, enc))
}

const summaryXML = `<report><report>
<hosts><count>3</count></hosts>
<os><count>2</count></os>
<apps><count>5</count></apps>
<results>
<result><original_threat>High</original_threat></result>
<result><original_threat>Medium</original_threat></result>
</results>
</report></report>`

func testController(t *testing.T, mock *mockClient) *Controller {
	t.Helper()
	c := NewController(gmp.ConnConfig{SocketPath: "/tmp/unused.sock"}, "admin", "secret", t.TempDir(), 0)
	c.SettleDelay = 0
	c.PollInterval = time.Millisecond
	c.Dial = func(cfg gmp.ConnConfig) (gmp.Client, error) { return mock, nil }
	return c
}

func hostsFile(t *testing.T, hosts string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(path, []byte(hosts), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScanCreatesMissingTarget(t *testing.T) {
	mock := &mockClient{
		statuses: []string{"Requested", "Running", gmp.StatusDone},
		reports: map[string][]byte{
			gmp.ReportFormatXML: []byte(summaryXML),
			gmp.ReportFormatPDF: wrap("%PDF-1.4 fake"),
			gmp.ReportFormatCSV: wrap("IP,Port\n10.0.0.1,443\n"),
		},
	}
	c := testController(t, mock)

	res, err := c.RunScan(context.Background(), Params{
		TargetName: "lab", HostsFile: hostsFile(t, "10.0.0.1\n10.0.0.2\n"),
		TaskName: "nightly", ScanConfigID: "cfg", ScannerID: "scn", PortListID: "pl",
	})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}

	if !mock.createdTarget {
		t.Error("expected a new target to be created")
	}
	if !mock.createdTask || !mock.started {
		t.Error("expected task to be created and started")
	}
	if res.Status != gmp.StatusDone {
		t.Errorf("status = %q, want Done", res.Status)
	}
	if res.HighCount != 1 || res.MediumCount != 1 || res.LowCount != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0", res.HighCount, res.MediumCount, res.LowCount)
	}
	if res.HostsCount != 3 || res.OSCount != 2 || res.AppsCount != 5 {
		t.Errorf("inventory = %d/%d/%d, want 3/2/5", res.HostsCount, res.OSCount, res.AppsCount)
	}

	if res.CSVPath == "" || res.PDFPath == "" {
		t.Fatalf("expected artifact paths, got csv=%q pdf=%q", res.CSVPath, res.PDFPath)
	}
	csvData, err := os.ReadFile(res.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(csvData) != "IP,Port\n10.0.0.1,443\n" {
		t.Errorf("unexpected CSV payload %q", csvData)
	}
}

func TestRunScanReusesExistingTarget(t *testing.T) {
	mock := &mockClient{
		targets:  []gmp.Target{{ID: "target-old", Name: "lab"}},
		statuses: []string{gmp.StatusDone},
		reports: map[string][]byte{
			gmp.ReportFormatXML: []byte(summaryXML),
			gmp.ReportFormatPDF: wrap("pdf"),
			gmp.ReportFormatCSV: wrap("csv"),
		},
	}
	c := testController(t, mock)

	_, err := c.RunScan(context.Background(), Params{
		TargetName: "lab", HostsFile: hostsFile(t, "10.0.0.1\n"),
		TaskName: "nightly", ScanConfigID: "cfg", ScannerID: "scn", PortListID: "pl",
	})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if mock.createdTarget {
		t.Error("target should have been reused, not recreated")
	}
}

func TestRunScanStoppedSkipsReports(t *testing.T) {
	mock := &mockClient{statuses: []string{"Running", gmp.StatusStopped}}
	c := testController(t, mock)

	res, err := c.RunScan(context.Background(), Params{
		TargetName: "lab", HostsFile: hostsFile(t, "10.0.0.1\n"),
		TaskName: "nightly", ScanConfigID: "cfg", ScannerID: "scn", PortListID: "pl",
	})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.Status != gmp.StatusStopped {
		t.Errorf("status = %q, want Stopped", res.Status)
	}
	if len(mock.fetched) != 0 {
		t.Errorf("no reports should be fetched after a stopped scan, got %v", mock.fetched)
	}
	if res.CSVPath != "" || res.PDFPath != "" {
		t.Error("stopped scan must not produce artifacts")
	}
}

func TestRunScanPDFFailureDoesNotBlockCSV(t *testing.T) {
	mock := &mockClient{
		statuses: []string{gmp.StatusDone},
		reports: map[string][]byte{
			gmp.ReportFormatXML: []byte(summaryXML),
			gmp.ReportFormatCSV: wrap("csv data"),
		},
		fetchErr: map[string]error{gmp.ReportFormatPDF: errors.New("format unavailable")},
	}
	c := testController(t, mock)

	res, err := c.RunScan(context.Background(), Params{
		TargetName: "lab", HostsFile: hostsFile(t, "10.0.0.1\n"),
		TaskName: "nightly", ScanConfigID: "cfg", ScannerID: "scn", PortListID: "pl",
	})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.PDFPath != "" {
		t.Error("PDF path should be empty after a failed download")
	}
	if res.CSVPath == "" {
		t.Error("CSV should still be retrieved when the PDF download fails")
	}
}

func TestRunScanCSVFailureLeavesEmptyPath(t *testing.T) {
	mock := &mockClient{
		statuses: []string{gmp.StatusDone},
		reports: map[string][]byte{
			gmp.ReportFormatXML: []byte(summaryXML),
			gmp.ReportFormatPDF: wrap("pdf"),
		},
		fetchErr: map[string]error{gmp.ReportFormatCSV: errors.New("format unavailable")},
	}
	c := testController(t, mock)

	res, err := c.RunScan(context.Background(), Params{
		TargetName: "lab", HostsFile: hostsFile(t, "10.0.0.1\n"),
		TaskName: "nightly", ScanConfigID: "cfg", ScannerID: "scn", PortListID: "pl",
	})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.CSVPath != "" {
		t.Error("CSV path should be empty after a failed download")
	}
	if res.HighCount != 1 {
		t.Errorf("summary should survive a CSV failure, high = %d", res.HighCount)
	}
}

func TestRunScanCancelledDuringPoll(t *testing.T) {
	mock := &mockClient{statuses: []string{"Running", "Running", "Running", "Running"}}
	c := testController(t, mock)
	c.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := c.RunScan(ctx, Params{
		TargetName: "lab", HostsFile: hostsFile(t, "10.0.0.1\n"),
		TaskName: "nightly", ScanConfigID: "cfg", ScannerID: "scn", PortListID: "pl",
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
