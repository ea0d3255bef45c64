// Package identity assigns stable cross-run identifiers to vulnerability
// types (MID) and to individual finding occurrences (DID). The two maps live
// in flat JSON files and are the only persistent state shared between runs.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
)

const (
	midPrefix = "MID"
	didPrefix = "DID"
	midDigits = 6
	didDigits = 8
)

// Allocator owns the key-to-ID maps. Single writer per map file for the
// duration of one campaign; concurrent campaigns against the same files are
// out of scope.
type Allocator struct {
	vulnPath    string
	findingPath string
	vulns       map[string]string
	findings    map[string]string
	log         *zap.SugaredLogger
}

// Open loads both mapping files. A missing file starts empty; a corrupt file
// is logged and treated as empty rather than failing the campaign.
func Open(vulnPath, findingPath string) *Allocator {
	log := logging.Sugar()
	return &Allocator{
		vulnPath:    vulnPath,
		findingPath: findingPath,
		vulns:       loadMap(vulnPath, log),
		findings:    loadMap(findingPath, log),
		log:         log,
	}
}

func loadMap(path string, log *zap.SugaredLogger) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorf("identity: unreadable mapping file %s, starting empty: %v", path, err)
		}
		return map[string]string{}
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		log.Errorf("identity: corrupt mapping file %s, starting empty: %v", path, err)
		return map[string]string{}
	}
	return m
}

// VulnKey builds the namespaced vulnerability-type key.
func VulnKey(tool, nativeID string) string {
	return tool + ":" + nativeID
}

// FindingKey builds the namespaced occurrence key. Extra parts (HTTP method,
// URL) are appended when the tool provides them.
func FindingKey(tool, nativeID, host, port string, extra ...string) string {
	var b strings.Builder
	b.WriteString(tool)
	b.WriteString(":")
	b.WriteString(nativeID)
	b.WriteString("_")
	b.WriteString(host)
	b.WriteString("_")
	b.WriteString(port)
	for _, e := range extra {
		b.WriteString("_")
		b.WriteString(e)
	}
	return b.String()
}

// MID returns the stable mapping ID for a vulnerability type, allocating the
// next free one on first sight.
func (a *Allocator) MID(tool, nativeID string) string {
	key := VulnKey(tool, nativeID)
	if mid, ok := a.vulns[key]; ok {
		return mid
	}
	mid := fmt.Sprintf("%s%0*d", midPrefix, midDigits, nextSuffix(a.vulns)+1)
	a.vulns[key] = mid
	return mid
}

// DID returns the stable detection ID for one concrete occurrence.
func (a *Allocator) DID(tool, nativeID, host, port string, extra ...string) string {
	key := FindingKey(tool, nativeID, host, port, extra...)
	if did, ok := a.findings[key]; ok {
		return did
	}
	did := fmt.Sprintf("%s%0*d", didPrefix, didDigits, nextSuffix(a.findings)+1)
	a.findings[key] = did
	return did
}

// nextSuffix derives the highest assigned numeric suffix from the current map
// contents. Never an in-memory counter: runs are independent processes and
// the map is the source of truth.
func nextSuffix(m map[string]string) int {
	max := 0
	for _, id := range m {
		if len(id) <= 3 {
			continue
		}
		n, err := strconv.Atoi(id[3:])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

// Save rewrites both mapping files.
func (a *Allocator) Save() error {
	if err := saveMap(a.vulnPath, a.vulns); err != nil {
		return err
	}
	return saveMap(a.findingPath, a.findings)
}

func saveMap(path string, m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return guarderr.E("identity.Save", guarderr.KindPersistence, "marshal mapping", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return guarderr.E("identity.Save", guarderr.KindPersistence, "write mapping file "+path, err)
	}
	return nil
}
