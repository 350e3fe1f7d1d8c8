package compiler

import "container/heap"

// RegisterManager owns a min-heap of free scalar register ids, a bounded
// scratchpad the compiler uses to stash intermediate addresses during
// complex pattern assignments (notably index-into-target). Grounded on
// spec.md §3/§9; exhausting the pool is a compile error (DeveloperError,
// since it indicates a pattern deeper than any real program should need).
type RegisterManager struct {
	free *intHeap
	size int
}

func NewRegisterManager(size int) *RegisterManager {
	h := &intHeap{}
	for i := 0; i < size; i++ {
		*h = append(*h, i)
	}
	heap.Init(h)
	return &RegisterManager{free: h, size: size}
}

func (r *RegisterManager) Alloc() (int, error) {
	if r.free.Len() == 0 {
		return 0, &DeveloperError{Message: "register file exhausted"}
	}
	return heap.Pop(r.free).(int), nil
}

func (r *RegisterManager) Free(id int) {
	heap.Push(r.free, id)
}

type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)         { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
