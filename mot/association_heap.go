package mot

// candidatePair is an eligible (detection box, track) pair scored by IoU
type candidatePair struct {
	boxIndex int
	trackID  int
	iou      float64
}

// Copied from container/heap - https://golang.org/pkg/container/heap/
// Why make copy? Just want to avoid type conversion

// pairHeap is a max-heap by IoU. Equal IoU is resolved by smaller track ID, then by smaller box index.
type pairHeap []*candidatePair

func (h pairHeap) Len() int { return len(h) }
func (h pairHeap) Less(i, j int) bool {
	if h[i].iou != h[j].iou {
		return h[i].iou > h[j].iou
	}
	if h[i].trackID != h[j].trackID {
		return h[i].trackID < h[j].trackID
	}
	return h[i].boxIndex < h[j].boxIndex
}
func (h pairHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *pairHeap) Push(x *candidatePair) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the top element (according to Less) from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *pairHeap) Pop() *candidatePair {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	heapSize := len(*h)
	lastNode := (*h)[heapSize-1]
	*h = (*h)[0 : heapSize-1]
	return lastNode
}

func (h pairHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h pairHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}
