// Package engine fans fingerprint computation out across a worker pool,
// consulting the cache before decoding, and assembles the duplicate report.
package engine

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"imagedups/cache"
	"imagedups/cluster"
	"imagedups/hasher"
	"imagedups/logging"
	"imagedups/signalhandler"
	"imagedups/types"
)

// Progress receives completion updates while a batch runs. It is purely
// observational: implementations must not influence control flow.
type Progress interface {
	Inc(n int)
}

// Options configures one duplicate-detection run.
type Options struct {
	// Algorithm is the fingerprint variant used for the whole batch.
	Algorithm hasher.Algorithm
	// MaxDistance is the largest bit distance still considered a near
	// duplicate.
	MaxDistance int
	// SkipSameDir suppresses clustering of images that share a parent
	// directory. Ignored when ExcludePair is set.
	SkipSameDir bool
	// ExcludePair, when non-nil, vetoes individual pairs (by item index)
	// before they are compared.
	ExcludePair func(a, b int) bool
	// Cache is the optional fingerprint cache. Nil disables caching.
	Cache *cache.Cache
	// Progress is the optional progress sink. Nil disables reporting.
	Progress Progress
	// Workers bounds the hashing pool; zero means one worker per core.
	Workers int
}

// Computation is the outcome of hashing a batch: every input item lands in
// exactly one of Hashes or Warnings.
type Computation struct {
	Hashes   []hasher.IndexedFingerprint
	Warnings []types.Warning
}

// pendingItem is a unit of hashing work. It carries its own index so results
// can be reassembled regardless of worker completion order.
type pendingItem struct {
	index int
	path  string
	stamp *cache.Stamp
}

// outcome is what a worker produces for one pending item.
type outcome struct {
	index int
	path  string
	hash  hasher.Fingerprint
	err   error
}

// ComputeAll fingerprints every item under the given algorithm. When a cache
// is supplied, each item is stamped and looked up first; hits skip decoding
// entirely. Misses are hashed across the worker pool and stored back
// best-effort. Per-item failures become warnings and never abort the batch.
func ComputeAll(items []types.ImageItem, algo hasher.Algorithm, c *cache.Cache, progress Progress, workers int) Computation {
	var comp Computation
	var pending []pendingItem

	// Sequential cache-consult pass. Stamp reads and lookups are cheap
	// compared to decode+hash, so they stay on the calling goroutine.
	for idx, item := range items {
		if c == nil {
			pending = append(pending, pendingItem{index: idx, path: item.Path})
			continue
		}

		stamp, err := cache.StampFile(item.Path)
		if err != nil {
			// The file vanished or is unreadable; it is excluded from
			// this run and retried on the next invocation.
			comp.Warnings = append(comp.Warnings, types.Warning{Path: item.Path, Message: err.Error()})
			logging.LogImageProcessed(item.Path, false, err.Error())
			continue
		}

		fp, err := c.Lookup(item.Path, algo, stamp)
		if err != nil {
			// A broken cache degrades to a miss, never to a batch failure.
			logging.LogWarning("%v", err)
		}
		if fp != nil {
			comp.Hashes = append(comp.Hashes, hasher.IndexedFingerprint{Index: idx, Hash: *fp})
			if progress != nil {
				progress.Inc(1)
			}
			continue
		}

		pending = append(pending, pendingItem{index: idx, path: item.Path, stamp: &stamp})
	}

	if len(pending) == 0 {
		sortByIndex(&comp)
		return comp
	}

	if workers <= 0 {
		workers = signalhandler.GetOptimalProcs()
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	tasks := make(chan pendingItem)
	results := make(chan outcome, len(pending))

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for task := range tasks {
				results <- hashOne(task, algo, c)
				if progress != nil {
					progress.Inc(1)
				}
			}
			return nil
		})
	}
	for _, task := range pending {
		tasks <- task
	}
	close(tasks)
	g.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			comp.Warnings = append(comp.Warnings, types.Warning{Path: res.path, Message: res.err.Error()})
			logging.LogImageProcessed(res.path, false, res.err.Error())
			continue
		}
		comp.Hashes = append(comp.Hashes, hasher.IndexedFingerprint{Index: res.index, Hash: res.hash})
		logging.LogImageProcessed(res.path, true, "")
	}

	sortByIndex(&comp)
	return comp
}

// hashOne decodes and fingerprints a single pending item, storing the result
// back into the cache when one is available. A failed store only costs the
// next run a recomputation, so it is logged and swallowed.
func hashOne(task pendingItem, algo hasher.Algorithm, c *cache.Cache) outcome {
	img, err := hasher.LoadImage(task.path)
	if err != nil {
		return outcome{index: task.index, path: task.path, err: err}
	}

	fp, err := hasher.Compute(img, algo)
	if err != nil {
		return outcome{index: task.index, path: task.path, err: err}
	}

	if c != nil && task.stamp != nil {
		if err := c.Store(task.path, algo, *task.stamp, fp); err != nil {
			logging.LogWarning("%v", err)
		}
	}

	return outcome{index: task.index, path: task.path, hash: fp}
}

// sortByIndex restores input order. Workers complete out of order; each
// result carries its origin index, so downstream consumers see a
// deterministic collection.
func sortByIndex(comp *Computation) {
	sort.Slice(comp.Hashes, func(i, j int) bool {
		return comp.Hashes[i].Index < comp.Hashes[j].Index
	})
}

// FindDuplicates runs the full pipeline: fingerprint every item, cluster the
// results, and wrap them into an immutable report. The call blocks until all
// dispatched work completes.
func FindDuplicates(items []types.ImageItem, opts Options) *types.DuplicateReport {
	comp := ComputeAll(items, opts.Algorithm, opts.Cache, opts.Progress, opts.Workers)

	exclude := opts.ExcludePair
	if exclude == nil && opts.SkipSameDir {
		exclude = cluster.SameDirExcluder(items)
	}

	groups := cluster.Cluster(len(items), comp.Hashes, opts.MaxDistance, exclude)

	return &types.DuplicateReport{
		Groups:   groups,
		Warnings: comp.Warnings,
	}
}
