// Package nikto normalizes combined Nikto CSV output. Fresh Nikto output is
// headerless with a fixed column order; the rewrite adds the header together
// with the MID/DID columns.
package nikto

import (
	"strings"

	"github.com/LukeyBoyy/MedusaGuard/internal/identity"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
	"github.com/LukeyBoyy/MedusaGuard/internal/normalize"
)

const Tool = "Nikto"

var fieldnames = []string{"Host IP", "Hostname", "Port", "Reference", "Method", "URL", "Description"}

// ProcessCSV augments the combined Nikto report in place and returns the
// normalized findings. Idempotent: a file that already carries the MID/DID
// header is read back without rewriting.
func ProcessCSV(path string, alloc *identity.Allocator) (normalize.BatchResult, error) {
	log := logging.Sugar()

	tbl, err := normalize.ReadTable(path)
	if err != nil {
		return normalize.BatchResult{}, err
	}

	// fresh output has no header row; ReadTable will have eaten the first
	// data row as one
	if !isHeader(tbl.Header) {
		if len(tbl.Header) > 0 {
			tbl.Rows = append([][]string{tbl.Header}, tbl.Rows...)
		}
		tbl.Header = fieldnames
	}

	augmented := normalize.AlreadyAugmented(tbl.Header)

	hostIPIdx := tbl.Col("Host IP")
	hostnameIdx := tbl.Col("Hostname")
	portIdx := tbl.Col("Port")
	refIdx := tbl.Col("Reference")
	methodIdx := tbl.Col("Method")
	urlIdx := tbl.Col("URL")
	descIdx := tbl.Col("Description")
	midIdx := tbl.Col("MID")
	didIdx := tbl.Col("DID")

	res := normalize.BatchResult{}
	var kept [][]string

	for _, row := range tbl.Rows {
		if isBanner(row) {
			continue
		}

		vulnID := normalize.Cell(row, refIdx)
		if vulnID == "" {
			vulnID = normalize.Cell(row, descIdx)
		}
		if vulnID == "" {
			log.Warnf("nikto: no vulnerability ID for row, skipping: %v", row)
			res.Skipped++
			continue
		}

		host := normalize.Cell(row, hostIPIdx)
		if host == "" {
			host = normalize.Cell(row, hostnameIdx)
		}
		if host == "" {
			log.Warnf("nikto: no host for row, skipping: %v", row)
			res.Skipped++
			continue
		}

		port := orDefault(normalize.Cell(row, portIdx), "unknown_port")
		method := orDefault(normalize.Cell(row, methodIdx), "unknown_method")
		url := orDefault(normalize.Cell(row, urlIdx), "unknown_url")

		var mid, did string
		if augmented {
			mid = normalize.Cell(row, midIdx)
			did = normalize.Cell(row, didIdx)
		} else {
			mid = alloc.MID(Tool, vulnID)
			did = alloc.DID(Tool, vulnID, host, port, method, url)
			row = append(row, mid, did)
		}
		kept = append(kept, row)

		res.Findings = append(res.Findings, model.Finding{
			Tool:     Tool,
			NativeID: vulnID,
			Host:     host,
			Port:     port,
			Method:   method,
			URL:      url,
			Summary:  normalize.Cell(row, descIdx),
			MID:      mid,
			DID:      did,
		})
	}

	if augmented || len(res.Findings) == 0 {
		if len(res.Findings) == 0 {
			log.Warnf("nikto: no rows were updated in %s", path)
		}
		return res, nil
	}

	tbl.Header = append(tbl.Header, "MID", "DID")
	tbl.Rows = kept
	if err := tbl.Write(path); err != nil {
		return res, err
	}
	if err := alloc.Save(); err != nil {
		return res, err
	}

	res.Augmented = true
	log.Infof("nikto: CSV report %s updated with MIDs and DIDs", path)
	return res, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && row[0] == fieldnames[0]
}

// isBanner drops the free-text banner lines Nikto writes around its CSV rows.
func isBanner(row []string) bool {
	for _, cell := range row {
		if strings.HasPrefix(cell, "Nikto") {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
