// Package nuclei normalizes combined nuclei text output. Lines look like
//
//	[template-id] [protocol] [severity] target
//
// and are converted into a sibling CSV carrying MID/DID columns.
package nuclei

import (
	"bufio"
	"os"
	"strings"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/identity"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
	"github.com/LukeyBoyy/MedusaGuard/internal/normalize"
)

const Tool = "Nuclei"

var csvHeader = []string{"Template", "Protocol", "Severity", "Host", "Port"}

// ProcessOutput parses a combined nuclei output file, allocates MID/DID per
// finding, and writes a normalized CSV next to the input. When handed a CSV
// path (a previous run's output) the stored IDs are read back instead.
func ProcessOutput(path string, alloc *identity.Allocator) (normalize.BatchResult, string, error) {
	if strings.HasSuffix(path, ".csv") {
		res, err := readNormalized(path)
		return res, path, err
	}

	log := logging.Sugar()

	f, err := os.Open(path)
	if err != nil {
		return normalize.BatchResult{}, "", guarderr.E("nuclei.ProcessOutput", guarderr.KindArtifact, "open "+path, err)
	}
	defer f.Close()

	res := normalize.BatchResult{}
	tbl := &normalize.Table{Header: append(append([]string{}, csvHeader...), "MID", "DID")}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		template, protocol, severity, target, ok := splitLine(line)
		if !ok {
			log.Warnf("nuclei: unparseable line, skipping: %s", line)
			res.Skipped++
			continue
		}
		host, port := splitTarget(target)
		if host == "" {
			log.Warnf("nuclei: no host in line, skipping: %s", line)
			res.Skipped++
			continue
		}

		mid := alloc.MID(Tool, template)
		did := alloc.DID(Tool, template, host, port)

		tbl.Rows = append(tbl.Rows, []string{template, protocol, severity, host, port, mid, did})
		res.Findings = append(res.Findings, model.Finding{
			Tool:     Tool,
			NativeID: template,
			Host:     host,
			Port:     port,
			Severity: severity,
			MID:      mid,
			DID:      did,
		})
	}
	if err := sc.Err(); err != nil {
		return res, "", guarderr.E("nuclei.ProcessOutput", guarderr.KindArtifact, "read "+path, err)
	}

	if len(res.Findings) == 0 {
		log.Warnf("nuclei: no findings in %s", path)
		return res, "", nil
	}

	outPath := strings.TrimSuffix(path, ".txt") + "_normalized.csv"
	if err := tbl.Write(outPath); err != nil {
		return res, "", err
	}
	if err := alloc.Save(); err != nil {
		return res, "", err
	}

	res.Augmented = true
	log.Infof("nuclei: normalized output written to %s", outPath)
	return res, outPath, nil
}

func readNormalized(path string) (normalize.BatchResult, error) {
	tbl, err := normalize.ReadTable(path)
	if err != nil {
		return normalize.BatchResult{}, err
	}

	res := normalize.BatchResult{}
	tmplIdx := tbl.Col("Template")
	protoIdx := tbl.Col("Protocol")
	sevIdx := tbl.Col("Severity")
	hostIdx := tbl.Col("Host")
	portIdx := tbl.Col("Port")
	midIdx := tbl.Col("MID")
	didIdx := tbl.Col("DID")

	for _, row := range tbl.Rows {
		res.Findings = append(res.Findings, model.Finding{
			Tool:     Tool,
			NativeID: normalize.Cell(row, tmplIdx),
			Host:     normalize.Cell(row, hostIdx),
			Port:     normalize.Cell(row, portIdx),
			Severity: normalize.Cell(row, sevIdx),
			Summary:  normalize.Cell(row, protoIdx),
			MID:      normalize.Cell(row, midIdx),
			DID:      normalize.Cell(row, didIdx),
		})
	}
	return res, nil
}

// splitLine pulls the three leading bracketed fields and the trailing target
// out of one nuclei output line.
func splitLine(line string) (template, protocol, severity, target string, ok bool) {
	fields := make([]string, 0, 3)
	rest := line
	for len(fields) < 3 {
		if !strings.HasPrefix(rest, "[") {
			return "", "", "", "", false
		}
		end := strings.Index(rest, "]")
		if end < 0 {
			return "", "", "", "", false
		}
		fields = append(fields, rest[1:end])
		rest = strings.TrimSpace(rest[end+1:])
	}
	if rest == "" {
		return "", "", "", "", false
	}
	// target is the first token after the bracketed fields
	target = strings.Fields(rest)[0]
	return fields[0], fields[1], fields[2], target, true
}

// splitTarget splits "host:port" (optionally behind a scheme) into parts,
// defaulting the port by scheme.
func splitTarget(target string) (host, port string) {
	scheme := ""
	if i := strings.Index(target, "://"); i >= 0 {
		scheme = target[:i]
		target = target[i+3:]
	}
	if i := strings.IndexAny(target, "/?"); i >= 0 {
		target = target[:i]
	}

	host = target
	port = ""
	if i := strings.LastIndex(target, ":"); i >= 0 {
		host, port = target[:i], target[i+1:]
	}
	if port == "" {
		switch scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		case "ssh":
			port = "22"
		case "ftp":
			port = "21"
		case "smb":
			port = "445"
		default:
			port = "unknown_port"
		}
	}
	return host, port
}
