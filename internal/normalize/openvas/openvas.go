// Package openvas normalizes the CSV report retrieved from the scan engine.
package openvas

import (
	"strconv"

	"github.com/LukeyBoyy/MedusaGuard/internal/identity"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
	"github.com/LukeyBoyy/MedusaGuard/internal/normalize"
)

// Tool is the key namespace prefix for this scanner.
const Tool = "OpenVAS"

// ProcessCSV augments the report in place with MID/DID columns and returns
// the normalized findings in input row order. Re-running on an
// already-augmented file reads the stored IDs back without touching the file
// or the allocator.
func ProcessCSV(path string, alloc *identity.Allocator) (normalize.BatchResult, error) {
	log := logging.Sugar()

	tbl, err := normalize.ReadTable(path)
	if err != nil {
		return normalize.BatchResult{}, err
	}

	augmented := normalize.AlreadyAugmented(tbl.Header)

	oidIdx := tbl.Col("NVT OID", "OID")
	hostIdx := tbl.Col("IP", "Host", "Hostname")
	portIdx := tbl.Col("Port")
	sevIdx := tbl.Col("Severity", "Threat")
	cvssIdx := tbl.Col("CVSS")
	sumIdx := tbl.Col("Summary", "NVT Name")
	solIdx := tbl.Col("Solution")
	midIdx := tbl.Col("MID")
	didIdx := tbl.Col("DID")

	res := normalize.BatchResult{}
	var kept [][]string

	for _, row := range tbl.Rows {
		oid := normalize.Cell(row, oidIdx)
		if oid == "" {
			log.Warnf("openvas: no NVT OID for row, skipping: %v", row)
			res.Skipped++
			continue
		}
		host := normalize.Cell(row, hostIdx)
		if host == "" {
			log.Warnf("openvas: no host for row, skipping: %v", row)
			res.Skipped++
			continue
		}
		port := normalize.Cell(row, portIdx)
		if port == "" {
			port = "unknown_port"
		}

		var mid, did string
		if augmented {
			mid = normalize.Cell(row, midIdx)
			did = normalize.Cell(row, didIdx)
		} else {
			mid = alloc.MID(Tool, oid)
			did = alloc.DID(Tool, oid, host, port)
			row = append(row, mid, did)
		}
		kept = append(kept, row)

		score, _ := strconv.ParseFloat(normalize.Cell(row, cvssIdx), 64)
		res.Findings = append(res.Findings, model.Finding{
			Tool:        Tool,
			NativeID:    oid,
			Host:        host,
			Port:        port,
			Severity:    normalize.Cell(row, sevIdx),
			Score:       score,
			Summary:     normalize.Cell(row, sumIdx),
			Remediation: normalize.Cell(row, solIdx),
			MID:         mid,
			DID:         did,
		})
	}

	if augmented || len(res.Findings) == 0 {
		if len(res.Findings) == 0 {
			log.Warnf("openvas: no rows were updated in %s", path)
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
	log.Infof("openvas: CSV report %s updated with MIDs and DIDs", path)
	return res, nil
}
