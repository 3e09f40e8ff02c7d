package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/PavSher76/AI-NK-sub005/internal/client"
	"github.com/PavSher76/AI-NK-sub005/internal/config"
)

// nkctl uploads a document, runs a compliance check and downloads the
// resulting report.
func main() {
	var (
		server = flag.String("server", "http://127.0.0.1:8080", "service base URL")
		token  = flag.String("token", os.Getenv("NK_TOKEN"), "bearer token")
		kind   = flag.String("kind", "checkable", "document kind: checkable or reference")
		mode   = flag.String("mode", "flat", "check mode: flat or hierarchical")
		format = flag.String("format", "pdf", "report format: json, docx or pdf")
		outDir = flag.String("out", ".", "directory for the downloaded report")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: nkctl [flags] <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	opts := client.PollOptionsFromSeconds(
		cfg.Validation.PollIntervalSeconds,
		cfg.Validation.PollCeilingSeconds,
	)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s failed: %v", path, err)
	}
	c := client.NewClient(*server)
	doc, err := c.Upload(*token, *kind, filepath.Base(path), f)
	f.Close()
	if err != nil {
		log.Fatalf("upload failed: %v", err)
	}
	if doc.Deduplicated {
		log.Printf("document already known, id %d", doc.ID)
	} else {
		log.Printf("uploaded document %d (%s)", doc.ID, doc.Filename)
	}
	if *kind != "checkable" {
		return
	}

	if err := waitForExtraction(c, *token, doc.ID, opts); err != nil {
		log.Fatalf("extraction failed: %v", err)
	}

	started, err := c.StartCheck(*token, doc.ID, *mode)
	if err != nil {
		log.Fatalf("start check failed: %v", err)
	}
	log.Printf("check %s for document %d", started.Status, doc.ID)

	report, err := c.WaitForReport(context.Background(), *token, doc.ID, opts)
	if err != nil {
		log.Fatalf("wait for report failed: %v", err)
	}
	log.Printf("report %s: %s, score %.0f, %d findings",
		report.ReportNumber, report.OverallStatus, report.ComplianceScore, report.TotalFindings)

	data, err := c.DownloadReport(*token, doc.ID, *format)
	if err != nil {
		log.Fatalf("download report failed: %v", err)
	}
	outPath := filepath.Join(*outDir, fmt.Sprintf("report-%d.%s", doc.ID, *format))
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("write report failed: %v", err)
	}
	log.Printf("report written to %s", outPath)
}

// waitForExtraction blocks until the freshly uploaded document leaves the
// pending state, so the check starts against extracted elements.
func waitForExtraction(c *client.Client, token string, id uint, opts client.PollOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ceiling := opts.Ceiling
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	deadline := time.Now().Add(ceiling)
	for {
		status, err := c.GetStatus(token, id)
		if err != nil {
			return err
		}
		switch status.ProcessingStatus {
		case "completed":
			return nil
		case "error":
			return fmt.Errorf("%s", status.ProcessingError)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("extraction still pending after %s", ceiling)
		}
		time.Sleep(interval)
	}
}
