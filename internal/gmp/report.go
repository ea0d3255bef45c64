package gmp

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
)

// Summary holds the counts extracted from the XML report format.
type Summary struct {
	HostsCount  int
	AppsCount   int
	OSCount     int
	HighCount   int
	MediumCount int
	LowCount    int
}

// ParseSummary walks the raw XML report and extracts the host/app/OS counts
// plus a severity tally. Severity entries carry a threat label per result;
// only High, Medium and Low labels count, everything else (Log, None,
// Alarm...) is ignored for the tally.
func ParseSummary(raw []byte) (Summary, error) {
	var s Summary

	dec := xml.NewDecoder(bytes.NewReader(raw))

	// first count element directly inside each of these sections
	section := ""
	sectionDone := map[string]bool{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Summary{}, guarderr.E("gmp.ParseSummary", guarderr.KindArtifact, "parse report xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "hosts", "os", "apps":
				section = t.Name.Local
			case "count":
				if section == "" || sectionDone[section] {
					continue
				}
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					continue
				}
				n, err := strconv.Atoi(strings.TrimSpace(text))
				if err != nil {
					continue
				}
				switch section {
				case "hosts":
					s.HostsCount = n
				case "os":
					s.OSCount = n
				case "apps":
					s.AppsCount = n
				}
				sectionDone[section] = true
			case "original_threat":
				var level string
				if err := dec.DecodeElement(&level, &t); err != nil {
					continue
				}
				switch strings.TrimSpace(level) {
				case "High":
					s.HighCount++
				case "Medium":
					s.MediumCount++
				case "Low":
					s.LowCount++
				}
			}
		case xml.EndElement:
			if t.Name.Local == section {
				section = ""
			}
		}
	}

	return s, nil
}

// DecodeAttachment extracts the base64 payload of a PDF or CSV report. The
// payload is the character data sitting directly inside the report element,
// after the report_format child.
func DecodeAttachment(raw []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	depth := 0
	reportDepth := -1
	var b64 strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, guarderr.E("gmp.DecodeAttachment", guarderr.KindArtifact, "parse report xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "report" && reportDepth == -1 {
				reportDepth = depth
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			if reportDepth != -1 && depth == reportDepth {
				b64.Write(t)
			}
		}
	}

	// long payloads arrive line-wrapped
	content := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, b64.String())
	if content == "" {
		return nil, guarderr.E("gmp.DecodeAttachment", guarderr.KindArtifact, "report contains no payload", nil)
	}

	payload, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, guarderr.E("gmp.DecodeAttachment", guarderr.KindArtifact, "decode base64 payload", err)
	}
	return payload, nil
}
