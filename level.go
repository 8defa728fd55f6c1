package pipeline

import (
	"fmt"
	"slices"
)

// Level returns a deterministic total order of the nodes 0..n-1 such that
// every node appears after all of its predecessors.
//
// Nodes are labeled Coffman–Graham style. A node becomes a candidate once
// all its predecessors are labeled; the candidate whose predecessor labels,
// sorted in decreasing order, form the lexicographically smallest sequence
// is labeled next, and remaining ties go to the lower index. The returned
// slice lists nodes in label order.
//
// Self references are ignored. If the predecessor relation is cyclic, Level
// returns a *CycleError holding one witness cycle.
func Level(n int, predecessors func(i int) []int) ([]int, error) {
	preds := make([][]int, n)
	succs := make([][]int, n)
	for i := 0; i < n; i++ {
		for _, p := range predecessors(i) {
			if p < 0 || p >= n {
				panic(fmt.Sprintf("pipeline: predecessor %d of node %d out of range [0,%d)", p, i, n))
			}
			if p == i || slices.Contains(preds[i], p) {
				continue
			}
			preds[i] = append(preds[i], p)
			succs[p] = append(succs[p], i)
		}
	}
	for i := range succs {
		slices.Sort(succs[i])
	}

	label := make([]int, n)
	waiting := make([]int, n)
	q := &levelQueue{}
	for i := 0; i < n; i++ {
		label[i] = -1
		waiting[i] = len(preds[i])
		if waiting[i] == 0 {
			q.push(&levelCandidate{node: i})
		}
	}

	order := make([]int, 0, n)
	for q.len() > 0 {
		c := q.pop()
		label[c.node] = len(order)
		order = append(order, c.node)

		for _, s := range succs[c.node] {
			waiting[s]--
			if waiting[s] > 0 {
				continue
			}
			key := make([]int, len(preds[s]))
			for j, p := range preds[s] {
				key[j] = label[p]
			}
			slices.Sort(key)
			slices.Reverse(key)
			q.push(&levelCandidate{node: s, key: key})
		}
	}

	if len(order) < n {
		return nil, &CycleError{Path: findCycle(succs, label)}
	}
	return order, nil
}

// findCycle walks the unlabeled nodes in index order and returns the first
// cycle found, in edge direction, with the start node repeated at the end.
func findCycle(succs [][]int, label []int) []int {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(succs))
	var stack []int

	var dfs func(u int) []int
	dfs = func(u int) []int {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range succs[u] {
			if label[v] >= 0 {
				continue
			}
			switch color[v] {
			case white:
				if c := dfs(v); c != nil {
					return c
				}
			case gray:
				start := slices.Index(stack, v)
				cycle := slices.Clone(stack[start:])
				return append(cycle, v)
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return nil
	}

	for i := range succs {
		if label[i] >= 0 || color[i] != white {
			continue
		}
		if c := dfs(i); c != nil {
			return c
		}
	}
	return nil
}

// levelCandidate is a node whose predecessors are all labeled.
type levelCandidate struct {
	node int
	key  []int
}

// less orders candidates by key, then by node index.
func (c *levelCandidate) less(o *levelCandidate) bool {
	if r := slices.Compare(c.key, o.key); r != 0 {
		return r < 0
	}
	return c.node < o.node
}

// levelQueue is a binary min-heap of candidates.
type levelQueue struct {
	heap []*levelCandidate
}

func (q *levelQueue) len() int { return len(q.heap) }

func (q *levelQueue) push(c *levelCandidate) {
	q.heap = append(q.heap, c)
	q.up(len(q.heap) - 1)
}

func (q *levelQueue) pop() *levelCandidate {
	n := len(q.heap) - 1
	q.swap(0, n)
	q.down(0, n)
	c := q.heap[n]
	q.heap[n] = nil
	q.heap = q.heap[:n]
	return c
}

func (q *levelQueue) up(i int) {
	for {
		parent := (i - 1) / 2
		if parent == i || !q.heap[i].less(q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *levelQueue) down(i, n int) {
	for {
		left := 2*i + 1
		if left >= n || left < 0 {
			break
		}
		j := left
		if right := left + 1; right < n && q.heap[right].less(q.heap[left]) {
			j = right
		}
		if !q.heap[j].less(q.heap[i]) {
			break
		}
		q.swap(i, j)
		i = j
	}
}

func (q *levelQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
}
