package toc

import "sync"

// heldInclude is an include the current call chain is resolving as owner.
type heldInclude struct {
	key  string
	path string
}

type waitNode struct {
	path string
	out  map[string]int
}

// waitGraph records which in-flight includes are blocked on which. An
// include owner is blocked on everything its descendants wait for, so a wait
// that would close a loop is refused instead of blocking forever.
type waitGraph struct {
	mu    sync.Mutex
	nodes map[string]*waitNode
}

func newWaitGraph() *waitGraph {
	return &waitGraph{nodes: make(map[string]*waitNode)}
}

// enter records that every held include waits on target. When that wait
// could never finish it records nothing and returns the include paths of the
// loop, starting and ending at the same path.
func (g *waitGraph) enter(held []heldInclude, target, targetPath string) []string {
	if len(held) == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	index := make(map[string]int, len(held))
	for i, h := range held {
		index[h.key] = i
	}
	if loop := g.search(index, target); loop != nil {
		first := index[loop[len(loop)-1]]
		paths := make([]string, 0, len(held)-first+len(loop))
		for _, h := range held[first:] {
			paths = append(paths, h.path)
		}
		for i, key := range loop {
			switch {
			case i == 0:
				paths = append(paths, targetPath)
			case i == len(loop)-1:
				paths = append(paths, held[first].path)
			default:
				paths = append(paths, g.nodes[key].path)
			}
		}
		return paths
	}

	for _, h := range held {
		n, ok := g.nodes[h.key]
		if !ok {
			n = &waitNode{path: h.path, out: make(map[string]int)}
			g.nodes[h.key] = n
		}
		n.out[target]++
	}
	return nil
}

// leave removes the edges added by a successful enter.
func (g *waitGraph) leave(held []heldInclude, target string) {
	if len(held) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, h := range held {
		n, ok := g.nodes[h.key]
		if !ok {
			continue
		}
		if n.out[target]--; n.out[target] <= 0 {
			delete(n.out, target)
		}
		if len(n.out) == 0 {
			delete(g.nodes, h.key)
		}
	}
}

// search walks the edges from start and returns the keys up to the first
// held key reached, or nil.
func (g *waitGraph) search(held map[string]int, start string) []string {
	visited := map[string]bool{}
	var walk func(key string, trail []string) []string
	walk = func(key string, trail []string) []string {
		trail = append(trail, key)
		if _, ok := held[key]; ok {
			return trail
		}
		if visited[key] {
			return nil
		}
		visited[key] = true
		n, ok := g.nodes[key]
		if !ok {
			return nil
		}
		for next := range n.out {
			if loop := walk(next, trail); loop != nil {
				return loop
			}
		}
		return nil
	}
	return walk(start, nil)
}
