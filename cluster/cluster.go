// Package cluster groups near-duplicate fingerprints into connected
// components with a union-find structure over pairwise bit distances.
package cluster

import (
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"imagedups/hasher"
	"imagedups/types"
)

// UnionFind is a flat array-backed disjoint-set with union by rank and
// iterative path compression.
type UnionFind struct {
	parent []int
	rank   []int
}

// NewUnionFind creates a disjoint-set over n singleton elements.
func NewUnionFind(n int) *UnionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]int, n),
	}
}

// Find returns the representative of x, compressing the path iteratively so
// pathological chains cannot grow the stack.
func (u *UnionFind) Find(x int) int {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

// Union merges the sets containing a and b.
func (u *UnionFind) Union(a, b int) {
	rootA := u.Find(a)
	rootB := u.Find(b)
	if rootA == rootB {
		return
	}
	if u.rank[rootA] < u.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	u.parent[rootB] = rootA
	if u.rank[rootA] == u.rank[rootB] {
		u.rank[rootA]++
	}
}

// SameDirExcluder returns a pair-exclusion predicate that rejects pairs of
// items sharing a parent directory. Indices refer to the items slice.
func SameDirExcluder(items []types.ImageItem) func(a, b int) bool {
	return func(a, b int) bool {
		return filepath.Dir(items[a].Path) == filepath.Dir(items[b].Path)
	}
}

// edge links two item indices whose fingerprints are within the distance
// threshold.
type edge struct {
	a, b int
}

// Cluster builds duplicate groups from the computed fingerprints. Every
// unordered fingerprint pair within maxDistance is unioned, unless the
// optional exclude predicate rejects the pair (it receives item indices).
// Groups of size one are dropped; the rest are sorted by descending size with
// ties kept in first-discovered order.
//
// The all-pairs distance scan is spread across workers; fingerprints are
// immutable so the scan needs no locking, and the unions on the shared
// structure are applied afterwards on a single goroutine.
func Cluster(itemCount int, hashes []hasher.IndexedFingerprint, maxDistance int, exclude func(a, b int) bool) []types.DuplicateGroup {
	if len(hashes) < 2 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(hashes) {
		workers = len(hashes)
	}

	rows := make(chan int)
	var mu sync.Mutex
	var edges []edge

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var local []edge
			for i := range rows {
				for j := i + 1; j < len(hashes); j++ {
					idxA := hashes[i].Index
					idxB := hashes[j].Index
					if exclude != nil && exclude(idxA, idxB) {
						continue
					}
					if hasher.Distance(hashes[i].Hash, hashes[j].Hash) <= maxDistance {
						local = append(local, edge{a: idxA, b: idxB})
					}
				}
			}
			mu.Lock()
			edges = append(edges, local...)
			mu.Unlock()
			return nil
		})
	}
	for i := 0; i < len(hashes); i++ {
		rows <- i
	}
	close(rows)
	g.Wait()

	uf := NewUnionFind(itemCount)
	for _, e := range edges {
		uf.Union(e.a, e.b)
	}

	// Group fingerprinted items by root, keeping the order in which each
	// component is first discovered so tied sizes stay deterministic.
	members := make(map[int][]int)
	var rootOrder []int
	for _, h := range hashes {
		root := uf.Find(h.Index)
		if _, seen := members[root]; !seen {
			rootOrder = append(rootOrder, root)
		}
		members[root] = append(members[root], h.Index)
	}

	var groups []types.DuplicateGroup
	for _, root := range rootOrder {
		if len(members[root]) < 2 {
			continue
		}
		groups = append(groups, types.DuplicateGroup{Items: members[root]})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Size() > groups[j].Size()
	})

	return groups
}
