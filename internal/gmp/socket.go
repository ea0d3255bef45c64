package gmp

import (
	"encoding/xml"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
)

// ConnConfig describes how to reach gvmd. SocketPath takes precedence over
// Addr when both are set. Timeout bounds every read and write on the
// connection; it is the connection timeout, not a scan deadline.
type ConnConfig struct {
	SocketPath string
	Addr       string
	Timeout    time.Duration
}

// SocketClient is the production Client. One in-flight command at a time;
// gvmd answers each command with exactly one response element, which is what
// lets a single persistent decoder drive the session.
type SocketClient struct {
	conn net.Conn
	dec  *xml.Decoder
	cfg  ConnConfig
	log  *zap.SugaredLogger
}

var dialFn = net.DialTimeout

// Dial connects to gvmd, retrying with exponential backoff while the daemon
// comes up.
func Dial(cfg ConnConfig) (*SocketClient, error) {
	network, addr := "tcp", cfg.Addr
	if cfg.SocketPath != "" {
		network, addr = "unix", cfg.SocketPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Hour
	}

	log := logging.Sugar()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	var conn net.Conn
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = dialFn(network, addr, 30*time.Second)
		return err
	}, bo, func(err error, _ time.Duration) {
		log.Warnf("gmp: retrying connection to %s://%s: %v", network, addr, err)
	})
	if err != nil {
		return nil, guarderr.E("gmp.Dial", guarderr.KindTransport, "connect to "+network+"://"+addr, err)
	}

	log.Infof("gmp: connected to %s://%s", network, addr)
	return &SocketClient{
		conn: conn,
		dec:  xml.NewDecoder(conn),
		cfg:  cfg,
		log:  log,
	}, nil
}

func (c *SocketClient) Close() error {
	return c.conn.Close()
}

// exec marshals one command, writes it, and decodes the single response
// element into resp.
func (c *SocketClient) exec(op string, cmd, resp interface{}) error {
	payload, err := xml.Marshal(cmd)
	if err != nil {
		return guarderr.E(op, guarderr.KindTransport, "marshal command", err)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return guarderr.E(op, guarderr.KindTransport, "set deadline", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return guarderr.E(op, guarderr.KindTransport, "write command", err)
	}
	if err := c.dec.Decode(resp); err != nil {
		return guarderr.E(op, guarderr.KindTransport, "decode response", err)
	}
	return nil
}

// respStatus is embedded in every response envelope.
type respStatus struct {
	Status     string `xml:"status,attr"`
	StatusText string `xml:"status_text,attr"`
}

// ok reports whether the GMP status code is in the 2xx range.
func (r respStatus) ok() bool {
	code, err := strconv.Atoi(r.Status)
	return err == nil && code >= 200 && code < 300
}

func (r respStatus) err(op string) error {
	return guarderr.E(op, guarderr.KindTransport,
		"gmp status "+r.Status+": "+r.StatusText, nil)
}

type idElem struct {
	ID string `xml:"id,attr"`
}

func (c *SocketClient) Authenticate(username, password string) error {
	cmd := struct {
		XMLName     xml.Name `xml:"authenticate"`
		Credentials struct {
			Username string `xml:"username"`
			Password string `xml:"password"`
		} `xml:"credentials"`
	}{}
	cmd.Credentials.Username = username
	cmd.Credentials.Password = password

	var resp struct {
		XMLName xml.Name `xml:"authenticate_response"`
		respStatus
	}
	if err := c.exec("gmp.Authenticate", &cmd, &resp); err != nil {
		return err
	}
	if !resp.ok() {
		return resp.err("gmp.Authenticate")
	}
	return nil
}

func (c *SocketClient) ListTargets() ([]Target, error) {
	cmd := struct {
		XMLName xml.Name `xml:"get_targets"`
	}{}

	var resp struct {
		XMLName xml.Name `xml:"get_targets_response"`
		respStatus
		Targets []struct {
			ID   string `xml:"id,attr"`
			Name string `xml:"name"`
		} `xml:"target"`
	}
	if err := c.exec("gmp.ListTargets", &cmd, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.err("gmp.ListTargets")
	}

	targets := make([]Target, 0, len(resp.Targets))
	for _, t := range resp.Targets {
		targets = append(targets, Target{ID: t.ID, Name: t.Name})
	}
	return targets, nil
}

func (c *SocketClient) CreateTarget(name string, hosts []string, portListID string) (string, error) {
	cmd := struct {
		XMLName  xml.Name `xml:"create_target"`
		Name     string   `xml:"name"`
		Hosts    string   `xml:"hosts"`
		PortList *idElem  `xml:"port_list,omitempty"`
	}{
		Name:  name,
		Hosts: strings.Join(hosts, ","),
	}
	if portListID != "" {
		cmd.PortList = &idElem{ID: portListID}
	}

	var resp struct {
		XMLName xml.Name `xml:"create_target_response"`
		respStatus
		ID string `xml:"id,attr"`
	}
	if err := c.exec("gmp.CreateTarget", &cmd, &resp); err != nil {
		return "", err
	}
	if !resp.ok() || resp.ID == "" {
		return "", resp.err("gmp.CreateTarget")
	}
	return resp.ID, nil
}

func (c *SocketClient) CreateTask(name, scanConfigID, targetID, scannerID string) (string, error) {
	cmd := struct {
		XMLName xml.Name `xml:"create_task"`
		Name    string   `xml:"name"`
		Config  idElem   `xml:"config"`
		Target  idElem   `xml:"target"`
		Scanner idElem   `xml:"scanner"`
	}{
		Name:    name,
		Config:  idElem{ID: scanConfigID},
		Target:  idElem{ID: targetID},
		Scanner: idElem{ID: scannerID},
	}

	var resp struct {
		XMLName xml.Name `xml:"create_task_response"`
		respStatus
		ID string `xml:"id,attr"`
	}
	if err := c.exec("gmp.CreateTask", &cmd, &resp); err != nil {
		return "", err
	}
	if !resp.ok() || resp.ID == "" {
		return "", resp.err("gmp.CreateTask")
	}
	return resp.ID, nil
}

func (c *SocketClient) StartTask(taskID string) (string, error) {
	cmd := struct {
		XMLName xml.Name `xml:"start_task"`
		TaskID  string   `xml:"task_id,attr"`
	}{TaskID: taskID}

	var resp struct {
		XMLName xml.Name `xml:"start_task_response"`
		respStatus
		ReportID string `xml:"report_id"`
	}
	if err := c.exec("gmp.StartTask", &cmd, &resp); err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", resp.err("gmp.StartTask")
	}
	return resp.ReportID, nil
}

func (c *SocketClient) TaskStatus(taskID string) (string, error) {
	cmd := struct {
		XMLName xml.Name `xml:"get_tasks"`
		TaskID  string   `xml:"task_id,attr"`
	}{TaskID: taskID}

	var resp struct {
		XMLName xml.Name `xml:"get_tasks_response"`
		respStatus
		Task struct {
			Status string `xml:"status"`
		} `xml:"task"`
	}
	if err := c.exec("gmp.TaskStatus", &cmd, &resp); err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", resp.err("gmp.TaskStatus")
	}
	return resp.Task.Status, nil
}

func (c *SocketClient) FetchReport(reportID, formatID string) ([]byte, error) {
	cmd := struct {
		XMLName          xml.Name `xml:"get_reports"`
		ReportID         string   `xml:"report_id,attr"`
		FormatID         string   `xml:"format_id,attr"`
		IgnorePagination string   `xml:"ignore_pagination,attr"`
		Details          string   `xml:"details,attr"`
	}{
		ReportID:         reportID,
		FormatID:         formatID,
		IgnorePagination: "1",
		Details:          "1",
	}

	var resp struct {
		XMLName xml.Name `xml:"get_reports_response"`
		respStatus
		Inner []byte `xml:",innerxml"`
	}
	if err := c.exec("gmp.FetchReport", &cmd, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.err("gmp.FetchReport")
	}
	return resp.Inner, nil
}
