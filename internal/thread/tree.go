package thread

import "github.com/fragmede/threadline/internal/api"

// Node is a comment with its resolved replies, in source-list order.
type Node struct {
	api.Comment
	Replies []*Node
}

// Build turns a flat comment list into a forest.
//
// A record whose parent is missing from the list, or points at itself, is
// promoted to a root. Records without an id are dropped. When an id occurs
// more than once the last occurrence wins and takes the position of that
// last occurrence. Reply cycles are broken at the first cycle member reached
// from the earliest record, so every addressable record appears exactly once.
func Build(records []api.Comment) []*Node {
	roots := []*Node{}
	if len(records) == 0 {
		return roots
	}

	last := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID == "" {
			continue
		}
		last[r.ID] = i
	}

	nodes := make(map[string]*Node, len(last))
	for id, i := range last {
		nodes[id] = &Node{Comment: records[i]}
	}

	promoted := breakCycles(records, last)

	for i, r := range records {
		if r.ID == "" || last[r.ID] != i {
			continue
		}
		n := nodes[r.ID]
		if pid, ok := parentIn(records, last, r.ID); ok && !promoted[r.ID] {
			p := nodes[pid]
			p.Replies = append(p.Replies, n)
			continue
		}
		roots = append(roots, n)
	}
	return roots
}

// parentIn returns the parent id of id when it resolves to another record.
func parentIn(records []api.Comment, last map[string]int, id string) (string, bool) {
	p := records[last[id]].Parent()
	if p == "" || p == id {
		return "", false
	}
	if _, ok := last[p]; !ok {
		return "", false
	}
	return p, true
}

func breakCycles(records []api.Comment, last map[string]int) map[string]bool {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]uint8, len(last))
	promoted := make(map[string]bool)

	for i, r := range records {
		if r.ID == "" || last[r.ID] != i {
			continue
		}
		var path []string
		id := r.ID
		for state[id] == unvisited {
			state[id] = onPath
			path = append(path, id)
			p, ok := parentIn(records, last, id)
			if !ok {
				break
			}
			id = p
		}
		if state[id] == onPath && len(path) > 0 {
			// Walked back onto the current path.
			if p, ok := parentIn(records, last, path[len(path)-1]); ok && p == id {
				promoted[id] = true
			}
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return promoted
}

// Count returns the number of nodes in a forest.
func Count(forest []*Node) int {
	n := 0
	Walk(forest, func(*Node, int) bool {
		n++
		return true
	})
	return n
}

// Walk visits every node depth-first, pre-order. Returning false from fn
// skips that node's replies.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				walk(n.Replies, depth+1)
			}
		}
	}
	walk(forest, 0)
}

// Find returns the node with id and its depth in the forest.
func Find(forest []*Node, id string) (*Node, int, bool) {
	var found *Node
	var at int
	Walk(forest, func(n *Node, depth int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found, at = n, depth
			return false
		}
		return true
	})
	return found, at, found != nil
}
