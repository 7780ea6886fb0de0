package cluster

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagedups/hasher"
	"imagedups/types"
)

// fp builds a 64-bit fingerprint with the given bit positions set.
func fp(set ...int) hasher.Fingerprint {
	bits := make([]bool, 64)
	for _, pos := range set {
		bits[pos] = true
	}
	return hasher.Fingerprint{Algo: hasher.AHash, Bits: bits}
}

func indexed(hashes ...hasher.Fingerprint) []hasher.IndexedFingerprint {
	out := make([]hasher.IndexedFingerprint, len(hashes))
	for i, h := range hashes {
		out[i] = hasher.IndexedFingerprint{Index: i, Hash: h}
	}
	return out
}

// membershipSets normalizes groups into sorted member slices for
// order-insensitive comparison.
func membershipSets(groups []types.DuplicateGroup) [][]int {
	sets := make([][]int, len(groups))
	for i, g := range groups {
		members := append([]int(nil), g.Items...)
		sort.Ints(members)
		sets[i] = members
	}
	sort.Slice(sets, func(i, j int) bool {
		return sets[i][0] < sets[j][0]
	})
	return sets
}

func TestUnionFind(t *testing.T) {
	t.Parallel()

	uf := NewUnionFind(6)
	for i := 0; i < 6; i++ {
		assert.Equal(t, i, uf.Find(i))
	}

	uf.Union(0, 1)
	uf.Union(1, 2)
	uf.Union(4, 5)

	assert.Equal(t, uf.Find(0), uf.Find(2))
	assert.Equal(t, uf.Find(4), uf.Find(5))
	assert.NotEqual(t, uf.Find(0), uf.Find(3))
	assert.NotEqual(t, uf.Find(2), uf.Find(4))

	// Union of already-joined elements is a no-op.
	root := uf.Find(0)
	uf.Union(2, 0)
	assert.Equal(t, root, uf.Find(1))
}

func TestUnionFindLongChain(t *testing.T) {
	t.Parallel()

	// A linear chain of unions exercises iterative path compression.
	const n = 100000
	uf := NewUnionFind(n)
	for i := 1; i < n; i++ {
		uf.Union(i-1, i)
	}
	assert.Equal(t, uf.Find(0), uf.Find(n-1))
}

func TestClusterScenarioPairwiseDistances(t *testing.T) {
	t.Parallel()

	// Three fingerprints at pairwise distances 3 (a,b), 9 (a,c), 12 (b,c).
	// At threshold 5 only a and b cluster; c stays isolated.
	a := fp()
	b := fp(0, 1, 2)
	c := fp(10, 11, 12, 13, 14, 15, 16, 17, 18)

	groups := Cluster(3, indexed(a, b, c), 5, nil)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []int{0, 1}, groups[0].Items)
}

func TestClusterEmptyAndSingletonInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Cluster(0, nil, 5, nil))
	assert.Empty(t, Cluster(3, indexed(fp(1)), 5, nil))
}

func TestClusterNoSingletonGroups(t *testing.T) {
	t.Parallel()

	// Five fingerprints, only two of them close.
	hashes := indexed(
		fp(),
		fp(1),
		fp(10, 11, 12, 13, 14, 15, 16, 17),
		fp(20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30),
		fp(40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51, 52),
	)

	groups := Cluster(5, hashes, 2, nil)
	for _, g := range groups {
		assert.GreaterOrEqual(t, g.Size(), 2)
	}
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []int{0, 1}, groups[0].Items)
}

func TestClusterMaxDistanceZero(t *testing.T) {
	t.Parallel()

	identicalA := fp(1, 2, 3)
	identicalB := fp(1, 2, 3)
	oneBitOff := fp(1, 2, 3, 4)

	groups := Cluster(3, indexed(identicalA, identicalB, oneBitOff), 0, nil)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []int{0, 1}, groups[0].Items)
}

func TestClusterTransitiveGrouping(t *testing.T) {
	t.Parallel()

	// a-b and b-c are within range, a-c is not; the chain still forms one
	// component.
	a := fp()
	b := fp(0, 1, 2)
	c := fp(0, 1, 2, 3, 4, 5)

	groups := Cluster(3, indexed(a, b, c), 3, nil)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []int{0, 1, 2}, groups[0].Items)
}

func TestClusterDeterministicMembership(t *testing.T) {
	t.Parallel()

	hashes := indexed(
		fp(1),
		fp(1, 2),
		fp(30, 31, 32, 33, 34, 35, 36, 37),
		fp(30, 31, 32, 33, 34, 35, 36, 38),
		fp(50, 51, 52, 53, 54, 55, 56, 57, 58, 59),
	)

	// Reversing the scan order must not change group membership.
	reversed := make([]hasher.IndexedFingerprint, len(hashes))
	for i, h := range hashes {
		reversed[len(hashes)-1-i] = h
	}

	forward := Cluster(5, hashes, 3, nil)
	backward := Cluster(5, reversed, 3, nil)
	assert.Equal(t, membershipSets(forward), membershipSets(backward))

	// And repeated runs agree with themselves.
	again := Cluster(5, hashes, 3, nil)
	assert.Equal(t, membershipSets(forward), membershipSets(again))
}

func TestClusterThresholdMonotonicity(t *testing.T) {
	t.Parallel()

	hashes := indexed(
		fp(),
		fp(0, 1, 2),
		fp(10, 11, 12, 13, 14, 15, 16, 17, 18),
	)

	tight := Cluster(3, hashes, 5, nil)
	loose := Cluster(3, hashes, 15, nil)

	// Every group at the tighter threshold is contained in some group at
	// the looser one.
	for _, tg := range tight {
		contained := false
		for _, lg := range loose {
			matches := 0
			for _, member := range tg.Items {
				for _, candidate := range lg.Items {
					if member == candidate {
						matches++
					}
				}
			}
			if matches == len(tg.Items) {
				contained = true
				break
			}
		}
		assert.True(t, contained, "group %v lost members at a looser threshold", tg.Items)
	}
}

func TestClusterSortedBySizeDescending(t *testing.T) {
	t.Parallel()

	hashes := indexed(
		// Pair at indices 0-1.
		fp(1),
		fp(1, 2),
		// Triple at indices 2-4.
		fp(30, 31, 32),
		fp(30, 31, 33),
		fp(30, 31, 34),
	)

	groups := Cluster(5, hashes, 2, nil)
	require.Len(t, groups, 2)
	assert.Equal(t, 3, groups[0].Size())
	assert.Equal(t, 2, groups[1].Size())
}

func TestClusterExclusionPredicate(t *testing.T) {
	t.Parallel()

	// Two bit-identical fingerprints whose pair is vetoed never group,
	// even at distance zero.
	twin := fp(5, 6, 7)
	groups := Cluster(2, indexed(twin, twin), 0, func(a, b int) bool { return true })
	assert.Empty(t, groups)

	// A selective predicate only vetoes the named pair.
	hashes := indexed(twin, twin, twin)
	groups = Cluster(3, hashes, 0, func(a, b int) bool {
		return a == 0 && b == 1
	})
	require.Len(t, groups, 1)
	// 0-2 and 1-2 still connect all three transitively.
	assert.ElementsMatch(t, []int{0, 1, 2}, groups[0].Items)
}

func TestSameDirExcluder(t *testing.T) {
	t.Parallel()

	items := []types.ImageItem{
		{Path: "/photos/2024/a.jpg"},
		{Path: "/photos/2024/b.jpg"},
		{Path: "/photos/2025/c.jpg"},
	}
	exclude := SameDirExcluder(items)

	assert.True(t, exclude(0, 1))
	assert.False(t, exclude(0, 2))
	assert.False(t, exclude(1, 2))
}

func TestClusterSameDirScenario(t *testing.T) {
	t.Parallel()

	// Identical images in the same directory are excluded; no group forms
	// even though the distance is zero.
	items := []types.ImageItem{
		{Path: "/photos/album/a.jpg"},
		{Path: "/photos/album/b.jpg"},
	}
	twin := fp(9)
	groups := Cluster(2, indexed(twin, twin), 0, SameDirExcluder(items))
	assert.Empty(t, groups)
}
