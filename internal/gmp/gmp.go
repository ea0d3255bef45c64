// Package gmp implements the subset of the Greenbone Management Protocol the
// scan lifecycle needs: authenticate, target and task management, and report
// retrieval. Commands and responses are XML exchanged over a unix or TCP
// socket.
package gmp

// Well-known report format identifiers. These are fixed on the GVM side and
// not user-configurable.
const (
	ReportFormatXML = "a994b278-1f62-11e1-96ac-406186ea4fc5"
	ReportFormatPDF = "c402cc3e-b531-11e1-9163-406186ea4fc5"
	ReportFormatCSV = "c1645568-627a-11e3-a660-406186ea4fc5"
)

// Terminal task statuses. Any other status means the task is still moving.
const (
	StatusDone    = "Done"
	StatusStopped = "Stopped"
	StatusFailed  = "Failed"
)

// Terminal reports whether a task status is one of the terminal set.
func Terminal(status string) bool {
	return status == StatusDone || status == StatusStopped || status == StatusFailed
}

// Target is one remote scan target as listed by get_targets.
type Target struct {
	ID   string
	Name string
}

// Client is the command surface the lifecycle controller drives. The socket
// implementation lives in this package; tests substitute a mock.
type Client interface {
	Authenticate(username, password string) error
	ListTargets() ([]Target, error)
	CreateTarget(name string, hosts []string, portListID string) (string, error)
	CreateTask(name, scanConfigID, targetID, scannerID string) (string, error)
	StartTask(taskID string) (reportID string, err error)
	TaskStatus(taskID string) (string, error)
	// FetchReport returns the raw inner XML of the get_reports response for
	// the given format. Use ParseSummary or DecodeAttachment on the result.
	FetchReport(reportID, formatID string) ([]byte, error)
	Close() error
}
