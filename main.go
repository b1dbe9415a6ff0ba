package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mxxx222/converto-receipts/pkg/ocr"
	"github.com/mxxx222/converto-receipts/pkg/process"
	"github.com/mxxx222/converto-receipts/pkg/store"
	"github.com/mxxx222/converto-receipts/pkg/vat"
)

// Wiring shared by all handlers; assembled once in main.
var (
	cfg      appConfig
	receipts store.Store
	proc     *process.Processor
	engine   *vat.Engine
)

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()
	cfg = loadConfig()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal("store init failed: ", err)
	}
	receipts = st

	primary, fallback, err := ocr.FromConfig(ocr.Config{
		Provider:      cfg.OCRProvider,
		VisionAPIKey:  cfg.VisionAPIKey,
		AzureEndpoint: cfg.AzureEndpoint,
		AzureKey:      cfg.AzureKey,
		Languages:     cfg.OCRLanguages,
	})
	if err != nil {
		log.Fatal("ocr init failed: ", err)
	}
	proc = process.New(receipts, primary, fallback)
	engine = vat.NewEngine(cfg.ValidVATRates)

	// `./converto-receipts process` runs one batch pass and exits. Useful
	// from cron or CI without keeping the server up.
	if len(os.Args) > 1 && os.Args[1] == "process" {
		results, err := proc.ProcessAll(context.Background())
		if err != nil {
			log.Fatal("batch failed: ", err)
		}
		out, _ := json.MarshalIndent(results, "", "  ")
		os.Stdout.Write(append(out, '\n'))
		return
	}

	if cfg.WatchDir != "" {
		go watchInbox(cfg.WatchDir)
	}

	r := gin.Default()
	setupRoutes(r)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatal(err)
	}
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
