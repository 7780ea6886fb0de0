package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"imagedups/cache"
	"imagedups/engine"
	"imagedups/hasher"
	"imagedups/logging"
	"imagedups/signalhandler"
	"imagedups/types"
	"imagedups/utils"
)

func main() {
	signalhandler.SetupHandler()
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	args := utils.ParseArguments()

	command, hasCommand := args["command"]
	if !hasCommand || command != "dupes" || args["folder"] == "" {
		utils.PrintUsage()
		os.Exit(1)
	}

	if _, ok := args["debug"]; ok {
		logPath := "imagedups.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
		defer logging.CloseLogger()
	}

	handleDupesCommand(args)
}

func handleDupesCommand(args map[string]string) {
	folderPath := args["folder"]
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		fmt.Printf("Error: Cannot access folder path %s (%v)\n", folderPath, err)
		os.Exit(1)
	}
	if !folderInfo.IsDir() {
		fmt.Printf("Error: Path is not a directory: %s\n", folderPath)
		os.Exit(1)
	}

	algo := hasher.DHash
	if name, ok := args["algo"]; ok && name != "" {
		algo, err = hasher.ParseAlgorithm(name)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	maxDistance := 5
	if distanceStr, ok := args["distance"]; ok {
		maxDistance, err = utils.ParseDistance(distanceStr)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	_, includeSameDir := args["include-same-dir"]
	_, quiet := args["quiet"]

	items := collectItems(folderPath)
	if len(items) == 0 {
		fmt.Println("No image files found.")
		return
	}

	// The cache is an accelerator; if it cannot be opened the run proceeds
	// without it rather than aborting.
	var fpCache *cache.Cache
	if _, noCache := args["no-cache"]; !noCache {
		cachePath := utils.GetDefaultCachePath()
		if customPath, ok := args["cache"]; ok && customPath != "" {
			cachePath = customPath
		}
		fpCache, err = cache.Open(cachePath)
		if err != nil {
			fmt.Printf("Warning: %v - continuing without cache\n", err)
		} else {
			defer fpCache.Close()
		}
	}

	fmt.Printf("Checking %d images for near duplicates (%s, max distance %d)...\n",
		len(items), algo, maxDistance)

	startTime := time.Now()
	tracker := newProgressTracker(len(items))

	report := engine.FindDuplicates(items, engine.Options{
		Algorithm:   algo,
		MaxDistance: maxDistance,
		SkipSameDir: !includeSameDir,
		Cache:       fpCache,
		Progress:    tracker,
	})

	tracker.stop()
	printReport(report, items, quiet)
	fmt.Printf("\nTotal time: %v\n", time.Since(startTime).Round(time.Millisecond))
}

// collectItems walks the folder and returns every image file as an item.
// filepath.Walk visits files in lexical order, so the item list (and with it
// the report) is deterministic for a given tree.
func collectItems(folderPath string) []types.ImageItem {
	var items []types.ImageItem
	filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.LogError("Error accessing path %s: %v", path, err)
			return nil
		}
		if !info.IsDir() && hasher.IsImageFile(path) {
			items = append(items, types.ImageItem{Path: path})
		}
		return nil
	})
	return items
}

func printReport(report *types.DuplicateReport, items []types.ImageItem, quiet bool) {
	fmt.Println()
	if len(report.Groups) == 0 {
		fmt.Println("No duplicate groups found.")
	}
	for i, group := range report.Groups {
		fmt.Printf("\nGroup %d (%d images):\n", i+1, group.Size())
		for _, idx := range group.Items {
			fmt.Printf("  %s\n", items[idx].Path)
		}
	}

	if len(report.Warnings) > 0 && !quiet {
		fmt.Printf("\nWarnings (%d):\n", len(report.Warnings))
		for _, warning := range report.Warnings {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", warning.Path, warning.Message)
		}
	}
}

// progressTracker periodically redraws a progress line while the batch runs.
type progressTracker struct {
	mu     sync.Mutex
	done   int
	total  int
	ticker *time.Ticker
	stopCh chan bool
}

func newProgressTracker(total int) *progressTracker {
	tracker := &progressTracker{
		total:  total,
		ticker: time.NewTicker(500 * time.Millisecond),
		stopCh: make(chan bool),
	}
	go tracker.display()
	return tracker
}

// Inc implements engine.Progress.
func (p *progressTracker) Inc(n int) {
	p.mu.Lock()
	p.done += n
	p.mu.Unlock()
}

func (p *progressTracker) display() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			fmt.Printf("\rProgress: %d/%d", p.done, p.total)
			p.mu.Unlock()
		}
	}
}

func (p *progressTracker) stop() {
	p.ticker.Stop()
	p.stopCh <- true
	p.mu.Lock()
	fmt.Printf("\rProgress: %d/%d\n", p.done, p.total)
	p.mu.Unlock()
}
