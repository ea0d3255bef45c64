// Command medusaguard runs one scan campaign from the command line. Flags
// override values in the configuration file and are persisted back to it, so
// the next invocation picks them up without repeating the flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LukeyBoyy/MedusaGuard/internal/campaign"
	"github.com/LukeyBoyy/MedusaGuard/internal/config"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the campaign configuration file")
	username := flag.String("username", "", "Greenbone username")
	password := flag.String("password", "", "Greenbone password")
	socketPath := flag.String("path", "", "path to the gvmd unix socket")
	portListID := flag.String("port-list-id", "", "port list reference for target creation")
	scanConfig := flag.String("scan-config", "", "scan configuration reference")
	scanner := flag.String("scanner", "", "scanner reference")
	targetName := flag.String("target-name", "", "name of the scan target")
	hostsFile := flag.String("hosts-file", "", "file with one target host per line")
	taskName := flag.String("task-name", "", "name of the scan task")
	flag.Parse()

	log := logging.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	overrides := config.Overrides{
		Username:     *username,
		Password:     *password,
		SocketPath:   *socketPath,
		PortListID:   *portListID,
		ScanConfigID: *scanConfig,
		ScannerID:    *scanner,
		TargetName:   *targetName,
		HostsFile:    *hostsFile,
		TaskName:     *taskName,
	}
	cfg.Apply(overrides)
	if overrides != (config.Overrides{}) {
		if err := config.Save(cfg, *configPath); err != nil {
			log.Warnf("could not persist overrides: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan string, 64)
	go func() {
		for line := range lines {
			fmt.Println(line)
		}
	}()

	agg := campaign.New(cfg)
	agg.Notify = lines

	out, err := agg.Run(ctx)
	close(lines)
	if err != nil {
		log.Fatalf("campaign failed: %v", err)
	}

	fmt.Printf("\nCampaign finished with status %s\n", out.Status)
	fmt.Printf("  Hosts scanned:   %d\n", out.Summary.HostsCount)
	fmt.Printf("  High severity:   %d\n", out.Summary.HighCount)
	fmt.Printf("  Medium severity: %d\n", out.Summary.MediumCount)
	fmt.Printf("  Low severity:    %d\n", out.Summary.LowCount)
	if out.CSVPath != "" {
		fmt.Printf("  CSV report:      %s\n", out.CSVPath)
	}
	if out.PDFPath != "" {
		fmt.Printf("  PDF report:      %s\n", out.PDFPath)
	}
}
