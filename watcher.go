package main

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".webm": {}, ".m4v": {}, ".flv": {},
}

// watchDir monitors a directory and runs the analysis pipeline on every new
// video file dropped into it. At most maxConcurrent files are analyzed at
// once; further files queue on the semaphore.
func watchDir(ctx context.Context, dir string, maxConcurrent int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Printf("watching %s for new videos (max concurrent: %d)", dir, maxConcurrent)

	semaphore := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			log.Printf("waiting for in-flight analyses to finish...")
			wg.Wait()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !isVideoFile(event.Name) {
				continue
			}
			log.Printf("new video detected: %s", event.Name)

			// Give the writer a moment to finish the file.
			time.Sleep(500 * time.Millisecond)

			select {
			case semaphore <- struct{}{}:
				wg.Add(1)
				go func(path string) {
					defer wg.Done()
					defer func() { <-semaphore }()
					resp := analyzeVideo(ctx, path)
					if resp.Analysis == nil {
						log.Printf("failed to analyze %s: %s", path, resp.Message)
					} else {
						log.Printf("analyzed %s (job %s)", path, resp.JobID)
					}
				}(event.Name)
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func isVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
