package vectorindex

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/models"
)

// IVFOptions tunes the inverted-file index. Zero values fall back to the
// documented defaults.
type IVFOptions struct {
	// NProbe is how many coarse cells a query scans. Higher trades speed
	// for recall; probing every cell reproduces the exact result.
	NProbe int
	// BruteForceFloor is the partition size below which queries fall back
	// to an exact linear scan instead of using the cell structure.
	BruteForceFloor int
}

const (
	defaultNProbe          = 4
	defaultBruteForceFloor = 256
	// rebuildGrowth retrains a partition's centroids once it has grown this
	// factor past the size at its last build.
	rebuildGrowth = 1.5
	kmeansIters   = 10
)

type ivfEntry struct {
	chunkID uuid.UUID
	vec     []float32
	norm    float64
	seq     uint64
	list    int // assigned coarse cell, -1 before the first build
}

type ivfPartition struct {
	mu        sync.RWMutex
	entries   []*ivfEntry
	nextSeq   uint64
	centroids [][]float32 // unit vectors
	lists     [][]*ivfEntry
	lastBuild int
}

// IVF is an approximate inverted-file index: vectors are bucketed under
// k-means centroids and queries scan only the closest cells. Scoring inside
// a probed cell is exact cosine, so with NProbe covering every cell the
// ranking matches BruteForce bit-for-bit.
type IVF struct {
	mu         sync.RWMutex
	dim        int
	opts       IVFOptions
	partitions map[uuid.UUID]*ivfPartition
}

func NewIVF(dim int, opts IVFOptions) *IVF {
	if dim <= 0 {
		dim = models.EmbeddingDim
	}
	if opts.NProbe <= 0 {
		opts.NProbe = defaultNProbe
	}
	if opts.BruteForceFloor <= 0 {
		opts.BruteForceFloor = defaultBruteForceFloor
	}
	return &IVF{
		dim:        dim,
		opts:       opts,
		partitions: make(map[uuid.UUID]*ivfPartition),
	}
}

func (ix *IVF) checkDim(v []float32) error {
	if len(v) != ix.dim {
		return fmt.Errorf("%w: embedding has %d dimensions, index expects %d", models.ErrValidation, len(v), ix.dim)
	}
	return nil
}

func (ix *IVF) partition(tenantID uuid.UUID, create bool) *ivfPartition {
	ix.mu.RLock()
	p := ix.partitions[tenantID]
	ix.mu.RUnlock()
	if p != nil || !create {
		return p
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if p = ix.partitions[tenantID]; p == nil {
		p = &ivfPartition{}
		ix.partitions[tenantID] = p
	}
	return p
}

func (ix *IVF) Insert(ctx context.Context, tenantID, chunkID uuid.UUID, embedding []float32) error {
	if err := ix.checkDim(embedding); err != nil {
		return err
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	p := ix.partition(tenantID, true)
	p.mu.Lock()
	defer p.mu.Unlock()

	e := &ivfEntry{
		chunkID: chunkID,
		vec:     vec,
		norm:    norm(vec),
		seq:     p.nextSeq,
		list:    -1,
	}
	p.nextSeq++
	p.entries = append(p.entries, e)

	if p.centroids != nil {
		li := nearestCentroid(p.centroids, e)
		e.list = li
		p.lists[li] = append(p.lists[li], e)
	}

	if ix.needsBuild(p) {
		p.build()
	}
	return nil
}

func (ix *IVF) needsBuild(p *ivfPartition) bool {
	n := len(p.entries)
	if n < ix.opts.BruteForceFloor {
		return false
	}
	if p.centroids == nil {
		return true
	}
	return float64(n) >= rebuildGrowth*float64(p.lastBuild)
}

func (ix *IVF) Remove(ctx context.Context, tenantID, chunkID uuid.UUID) error {
	p := ix.partition(tenantID, false)
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.entries {
		if e.chunkID != chunkID {
			continue
		}
		p.entries = append(p.entries[:i], p.entries[i+1:]...)
		if e.list >= 0 {
			list := p.lists[e.list]
			for j := range list {
				if list[j] == e {
					p.lists[e.list] = append(list[:j], list[j+1:]...)
					break
				}
			}
		}
		return nil
	}
	return nil
}

func (ix *IVF) Query(ctx context.Context, tenantID uuid.UUID, embedding []float32, k int) ([]Match, error) {
	if err := ix.checkDim(embedding); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	p := ix.partition(tenantID, false)
	if p == nil {
		return nil, nil
	}

	qnorm := norm(embedding)

	p.mu.RLock()
	defer p.mu.RUnlock()

	var candidates []*ivfEntry
	if p.centroids == nil || len(p.entries) < ix.opts.BruteForceFloor {
		candidates = p.entries
	} else {
		candidates = p.probe(embedding, qnorm, ix.opts.NProbe)
	}

	type scoredEntry struct {
		m   Match
		seq uint64
	}
	scored := make([]scoredEntry, 0, len(candidates))
	for _, e := range candidates {
		var score float64
		if qnorm != 0 && e.norm != 0 {
			score = dot(e.vec, embedding) / (e.norm * qnorm)
		}
		scored = append(scored, scoredEntry{m: Match{ChunkID: e.chunkID, Score: score}, seq: e.seq})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].m.Score != scored[j].m.Score {
			return scored[i].m.Score > scored[j].m.Score
		}
		return scored[i].seq < scored[j].seq
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]Match, len(scored))
	for i, s := range scored {
		out[i] = s.m
	}
	return out, nil
}

// probe collects entries from the nprobe cells whose centroids are closest
// to the query. Caller holds at least a read lock.
func (p *ivfPartition) probe(query []float32, qnorm float64, nprobe int) []*ivfEntry {
	type cell struct {
		idx   int
		score float64
	}
	cells := make([]cell, len(p.centroids))
	for i, c := range p.centroids {
		var score float64
		if qnorm != 0 {
			score = dot(c, query) / qnorm // centroids are unit vectors
		}
		cells[i] = cell{idx: i, score: score}
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].score > cells[j].score })

	if nprobe > len(cells) {
		nprobe = len(cells)
	}
	var out []*ivfEntry
	for _, c := range cells[:nprobe] {
		out = append(out, p.lists[c.idx]...)
	}
	return out
}

// build retrains centroids over the current entries and reassigns every
// vector. Caller holds the write lock. The k-means seed derives from the
// partition size so rebuilds are reproducible.
func (p *ivfPartition) build() {
	n := len(p.entries)
	nlist := int(math.Ceil(math.Sqrt(float64(n))))
	if nlist < 1 {
		nlist = 1
	}

	unit := make([][]float32, n)
	for i, e := range p.entries {
		unit[i] = normalize(e.vec, e.norm)
	}

	p.centroids = kmeans(unit, nlist, rand.New(rand.NewSource(int64(n))))
	p.lists = make([][]*ivfEntry, len(p.centroids))
	for _, e := range p.entries {
		li := nearestCentroid(p.centroids, e)
		e.list = li
		p.lists[li] = append(p.lists[li], e)
	}
	p.lastBuild = n
}

func nearestCentroid(centroids [][]float32, e *ivfEntry) int {
	u := normalize(e.vec, e.norm)
	best, bestScore := 0, math.Inf(-1)
	for i, c := range centroids {
		if s := dot(c, u); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func normalize(v []float32, n float64) []float32 {
	out := make([]float32, len(v))
	if n == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// kmeans runs a few Lloyd iterations over unit vectors and returns unit
// centroids. Empty clusters are re-seeded from a random point.
func kmeans(points [][]float32, k int, rng *rand.Rand) [][]float32 {
	if k > len(points) {
		k = len(points)
	}
	if k == 0 {
		return nil
	}
	dim := len(points[0])

	centroids := make([][]float32, k)
	for i, pi := range rng.Perm(len(points))[:k] {
		c := make([]float32, dim)
		copy(c, points[pi])
		centroids[i] = c
	}

	assign := make([]int, len(points))
	for iter := 0; iter < kmeansIters; iter++ {
		changed := false
		for i, pt := range points {
			best, bestScore := 0, math.Inf(-1)
			for j, c := range centroids {
				if s := dot(c, pt); s > bestScore {
					best, bestScore = j, s
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, pt := range points {
			c := assign[i]
			counts[c]++
			for d, x := range pt {
				sums[c][d] += float64(x)
			}
		}
		for j := range centroids {
			if counts[j] == 0 {
				copy(centroids[j], points[rng.Intn(len(points))])
				continue
			}
			var sq float64
			for d := range sums[j] {
				m := sums[j][d] / float64(counts[j])
				sums[j][d] = m
				sq += m * m
			}
			l := math.Sqrt(sq)
			for d := range sums[j] {
				if l != 0 {
					centroids[j][d] = float32(sums[j][d] / l)
				} else {
					centroids[j][d] = 0
				}
			}
		}
	}
	return centroids
}
