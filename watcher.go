package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mxxx222/converto-receipts/pkg/store"
)

// MIME mapping to avoid sniffing files repeatedly
var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
}

// watchInbox ingests receipt files dropped into dir: everything already
// present at startup, then every new file as it appears. Ingestion goes
// through the same dedup path as HTTP uploads, so re-dropping a file is
// harmless.
func watchInbox(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("watch: cannot read %s: %v", dir, err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			ingestFile(filepath.Join(dir, e.Name()))
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("watch: init failed: %v", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		log.Printf("watch: cannot watch %s: %v", dir, err)
		return
	}
	log.Printf("watch: ingesting from %s", dir)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Give the writer a moment to finish before reading.
			time.Sleep(200 * time.Millisecond)
			ingestFile(ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		}
	}
}

func ingestFile(path string) {
	mime, ok := extMime[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("watch: read %s: %v", path, err)
		return
	}
	res, err := receipts.Add(context.Background(), store.Upload{
		Name:     filepath.Base(path),
		MimeType: mime,
		Data:     data,
	})
	if err != nil {
		log.Printf("watch: ingest %s: %v", path, err)
		return
	}
	if res.Duplicate {
		log.Printf("watch: %s already known (receipt %s)", filepath.Base(path), res.Meta.ID)
		return
	}
	log.Printf("watch: queued %s as receipt %s", filepath.Base(path), res.Meta.ID)
}
