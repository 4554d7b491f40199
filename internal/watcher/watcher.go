// Package watcher uploads files dropped into a directory.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 500 * time.Millisecond

// Uploader accepts a file for ingestion.
type Uploader interface {
	Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error)
}

// Config tunes the watcher.
type Config struct {
	// Extensions limits which files are uploaded, e.g. ".pdf". Empty means
	// every extension with a known content type.
	Extensions []string
	// Settle is how long a file must stay quiet before it is uploaded.
	Settle time.Duration
	// OnUpload is called after each upload attempt.
	OnUpload func(path string, doc *domain.Document, err error)
}

// Watcher uploads created or modified files once writes to them have settled.
type Watcher struct {
	fsw        *fsnotify.Watcher
	uploader   Uploader
	extensions map[string]bool
	settle     time.Duration
	onUpload   func(path string, doc *domain.Document, err error)

	mu      sync.Mutex
	pending map[string]time.Time
}

func New(uploader Uploader, cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		uploader: uploader,
		settle:   cfg.Settle,
		onUpload: cfg.OnUpload,
		pending:  make(map[string]time.Time),
	}
	if w.settle <= 0 {
		w.settle = defaultSettle
	}
	if len(cfg.Extensions) > 0 {
		w.extensions = make(map[string]bool, len(cfg.Extensions))
		for _, ext := range cfg.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions[ext] = true
		}
	}
	return w, nil
}

// Run watches dir until ctx is cancelled. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	defer w.fsw.Close()

	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Printf("watcher: watching %s", dir)

	tick := time.NewTicker(w.settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.accepts(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: %v", err)
		case now := <-tick.C:
			for _, path := range w.settled(now) {
				w.upload(ctx, path)
			}
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if w.extensions != nil {
		return w.extensions[strings.ToLower(filepath.Ext(base))]
	}
	return extract.ContentTypeForFilename(base) != "application/octet-stream"
}

func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *Watcher) upload(ctx context.Context, path string) {
	doc, err := w.uploadFile(ctx, path)
	if err != nil {
		log.Printf("watcher: upload %s: %v", path, err)
	} else {
		log.Printf("watcher: uploaded %s as document %s", path, doc.ID)
	}
	if w.onUpload != nil {
		w.onUpload(path, doc, err)
	}
}

func (w *Watcher) uploadFile(ctx context.Context, path string) (*domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]string{"source_path": path})
	if err != nil {
		return nil, err
	}

	return w.uploader.Upload(ctx, service.UploadInput{
		Filename:    filepath.Base(path),
		ContentType: extract.ContentTypeForFilename(path),
		Data:        data,
		Metadata:    domain.Metadata(metadata),
	})
}
