package helper

import (
	"bufio"
	"os"
	"strings"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
)

// ReadHostsFile reads a newline-delimited list of addresses, dropping blank
// lines. An unreadable or empty file is a configuration error: a campaign
// must not start without at least one host.
func ReadHostsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, guarderr.E("helper.ReadHostsFile", guarderr.KindConfig, "open hosts file "+path, err)
	}
	defer f.Close()

	var hosts []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			hosts = append(hosts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, guarderr.E("helper.ReadHostsFile", guarderr.KindConfig, "read hosts file "+path, err)
	}
	if len(hosts) == 0 {
		return nil, guarderr.E("helper.ReadHostsFile", guarderr.KindConfig, "no hosts found in "+path, nil)
	}
	return hosts, nil
}
