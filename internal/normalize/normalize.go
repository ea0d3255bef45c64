// Package normalize converts tool-specific result rows into the canonical
// Finding shape with assigned MID/DID. Per-tool parsing lives in the
// subpackages; this package holds the shared CSV table machinery.
package normalize

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
)

// BatchResult is the outcome of normalizing one report file. Skipped counts
// rows dropped for data-quality reasons (no usable vulnerability ID or host);
// those are warnings, never errors.
type BatchResult struct {
	Findings  []model.Finding
	Skipped   int
	Augmented bool // false when the file already carried MID/DID columns
}

// Table is a CSV file held fully in memory, header included.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable loads a CSV file with a header row.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, guarderr.E("normalize.ReadTable", guarderr.KindArtifact, "open "+path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, guarderr.E("normalize.ReadTable", guarderr.KindArtifact, "parse "+path, err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// Write rewrites the table to path, header first.
func (t *Table) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return guarderr.E("normalize.Write", guarderr.KindArtifact, "create "+path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return guarderr.E("normalize.Write", guarderr.KindArtifact, "write header", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return guarderr.E("normalize.Write", guarderr.KindArtifact, "write rows", err)
	}
	w.Flush()
	return w.Error()
}

// Col returns the index of the first header matching any of the given names,
// or -1.
func (t *Table) Col(names ...string) int {
	for _, name := range names {
		for i, h := range t.Header {
			if h == name {
				return i
			}
		}
	}
	return -1
}

// Cell returns the trimmed value at idx, or "" when the column is absent or
// the row too short.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// AlreadyAugmented reports whether a header carries both ID columns; their
// presence signals a file that was normalized on a previous run and must not
// get columns appended again.
func AlreadyAugmented(header []string) bool {
	hasMID, hasDID := false, false
	for _, h := range header {
		switch h {
		case "MID":
			hasMID = true
		case "DID":
			hasDID = true
		}
	}
	return hasMID && hasDID
}
