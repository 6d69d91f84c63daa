package quant

import (
	"container/heap"

	"github.com/gogpu/quant/internal/color"
)

// octreeDepth is the fixed depth of the color octree: one bit per channel
// per level across R, G, B.
const octreeDepth = 8

// octreeNode is one node of the color octree, addressed by its index into
// Octree.nodes (an arena-of-indices) rather than by pointer: parent and
// children are indices, which breaks the parent/child reference cycle at
// the type level and lets dropping the arena drop the whole tree at once.
type octreeNode struct {
	children [8]int32 // -1 when absent
	numKids  int

	sumR, sumG, sumB uint64
	count            uint64

	parent    int32 // -1 for the root
	childSlot int    // which of parent's 8 slots this node occupies
	depth     int    // 0..octreeDepth
}

// Octree ingests pixels into a depth-8 tree indexed by one bit per channel
// per level, then reduces leaves down to at most K representative colors.
type Octree struct {
	nodes []octreeNode
	root  int32
}

// NewOctree creates an empty octree with an allocated root node.
func NewOctree() *Octree {
	o := &Octree{}
	o.root = o.newNode(-1, 0, 0)
	return o
}

func (o *Octree) newNode(parent int32, childSlot, depth int) int32 {
	o.nodes = append(o.nodes, octreeNode{
		children: [8]int32{-1, -1, -1, -1, -1, -1, -1, -1},
		parent:   parent,
		childSlot: childSlot,
		depth:    depth,
	})
	return int32(len(o.nodes) - 1)
}

// Insert routes one pixel down to a depth-8 leaf, creating intermediate
// nodes as needed, and adds it to every node's accumulator along the path
// (P8: each node's sum equals the sum of its descendants' sums).
func (o *Octree) Insert(p Pixel) {
	cur := o.root
	for depth := 0; depth < octreeDepth; depth++ {
		n := &o.nodes[cur]
		n.sumR += uint64(p.R)
		n.sumG += uint64(p.G)
		n.sumB += uint64(p.B)
		n.count++

		slot := octreeChildSlot(p, depth)
		if n.children[slot] == -1 {
			child := o.newNode(cur, slot, depth+1)
			o.nodes[cur].children[slot] = child
			o.nodes[cur].numKids++
		}
		cur = o.nodes[cur].children[slot]
	}
	// cur is now the depth-8 leaf; record its own accumulator too.
	leaf := &o.nodes[cur]
	leaf.sumR += uint64(p.R)
	leaf.sumG += uint64(p.G)
	leaf.sumB += uint64(p.B)
	leaf.count++
}

// octreeChildSlot extracts the bit at the given depth from each channel,
// most significant bit first, and packs them as (rBit<<2)|(gBit<<1)|bBit.
func octreeChildSlot(p Pixel, depth int) int {
	shift := 7 - depth
	r := (int(p.R) >> shift) & 1
	g := (int(p.G) >> shift) & 1
	b := (int(p.B) >> shift) & 1
	return (r << 2) | (g << 1) | b
}

// octreeHeap is a min-heap over node indices ordered by reduction priority:
// fewer children precedes smaller count>>depth precedes smaller node-id.
// Popping yields the least important leaf to fold away first.
type octreeHeap struct {
	o   *Octree
	ids []int32
}

func (h *octreeHeap) Len() int { return len(h.ids) }

func (h *octreeHeap) Less(i, j int) bool {
	a, b := &h.o.nodes[h.ids[i]], &h.o.nodes[h.ids[j]]
	if a.numKids != b.numKids {
		return a.numKids < b.numKids
	}
	aWeight := a.count >> uint(a.depth)
	bWeight := b.count >> uint(b.depth)
	if aWeight != bWeight {
		return aWeight < bWeight
	}
	return h.ids[i] < h.ids[j]
}

func (h *octreeHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }

func (h *octreeHeap) Push(x any) { h.ids = append(h.ids, x.(int32)) }

func (h *octreeHeap) Pop() any {
	n := len(h.ids)
	id := h.ids[n-1]
	h.ids = h.ids[:n-1]
	return id
}

// Reduce collapses the tree until at most K leaves with count > 0 remain,
// folding the least important leaf into its parent each step, then emits
// one palette color per remaining leaf. Colors are not yet sorted or
// deduped; callers compose that via SortAndDedupePalette.
func (o *Octree) Reduce(k int) []Pixel {
	h := &octreeHeap{o: o}
	leafSet := make(map[int32]bool)
	for id := range o.nodes {
		n := &o.nodes[id]
		if n.count > 0 && n.numKids == 0 {
			h.ids = append(h.ids, int32(id))
			leafSet[int32(id)] = true
		}
	}
	heap.Init(h)

	for len(leafSet) > k && h.Len() > 0 {
		victim := heap.Pop(h).(int32)
		if !leafSet[victim] {
			continue
		}
		delete(leafSet, victim)

		v := &o.nodes[victim]
		parentIdx := v.parent
		if parentIdx == -1 {
			// Root with no siblings to fold into; nothing left to do.
			continue
		}
		parent := &o.nodes[parentIdx]
		parent.children[v.childSlot] = -1
		parent.numKids--

		if parent.numKids == 0 && parent.count > 0 {
			leafSet[parentIdx] = true
			heap.Push(h, parentIdx)
		}
	}

	colors := make([]Pixel, 0, len(leafSet))
	for id := range leafSet {
		n := &o.nodes[id]
		if n.count == 0 {
			continue
		}
		colors = append(colors, Pixel{
			R: uint8(n.sumR / n.count),
			G: uint8(n.sumG / n.count),
			B: uint8(n.sumB / n.count),
			A: 255,
		})
	}
	return colors
}

// SortAndDedupePalette sorts a palette ascending by Lab lightness and
// removes duplicate colors, the final step palette composition shares
// for both Kmeans and Octree.
func SortAndDedupePalette(colors []Pixel) []Pixel {
	ks := make([]paletteKey, len(colors))
	for i, p := range colors {
		lr := color.SRGBToLinear(float32(p.R) / 255.0)
		lg := color.SRGBToLinear(float32(p.G) / 255.0)
		lb := color.SRGBToLinear(float32(p.B) / 255.0)
		ks[i] = paletteKey{p: p, l: color.SRGBToLab(lr, lg, lb).L}
	}
	insertionSortByL(ks)

	out := make([]Pixel, 0, len(ks))
	seen := make(map[Pixel]bool, len(ks))
	for _, k := range ks {
		if seen[k.p] {
			continue
		}
		seen[k.p] = true
		out = append(out, k.p)
	}
	return out
}

// paletteKey pairs a palette color with its Lab lightness for sorting.
type paletteKey struct {
	p Pixel
	l float32
}

// insertionSortByL sorts in place by ascending Lab L. The palette sizes
// this runs over (K, typically well under a few hundred) make insertion
// sort's simplicity preferable to pulling in sort.Slice for one call site.
func insertionSortByL(ks []paletteKey) {
	for i := 1; i < len(ks); i++ {
		j := i
		for j > 0 && ks[j-1].l > ks[j].l {
			ks[j-1], ks[j] = ks[j], ks[j-1]
			j--
		}
	}
}
