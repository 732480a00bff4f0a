package policy

import (
	"fmt"
	"strings"
)

// SuperCycle reports constructors that derive from each other.
type SuperCycle struct {
	Path    []string `json:"path"` // ["A", "B", "A"]
	Message string   `json:"message"`
}

// superGraph maps an entry path to the entries that must be applied
// before it. Nodes keep table order so traversal is deterministic.
type superGraph struct {
	nodes []string
	edges map[string][]string
}

// buildSuperGraph links each constructor to its super. With prefixes set,
// each entry also depends on the table entries for its enclosing paths, so
// "Point" is classified (and given a prototype) before
// "Point.prototype.getX" is resolved.
func buildSuperGraph(t *Table, prefixes bool) superGraph {
	g := superGraph{edges: make(map[string][]string)}
	for _, e := range t.Entries {
		if _, ok := g.edges[e.Path]; ok {
			continue
		}
		g.nodes = append(g.nodes, e.Path)
		g.edges[e.Path] = nil
		if e.Shape == ShapeConstructor && e.Super != "" {
			g.edges[e.Path] = append(g.edges[e.Path], e.Super)
		}
	}
	if prefixes {
		for _, n := range g.nodes {
			segs := strings.Split(n, ".")
			for i := len(segs) - 1; i > 0; i-- {
				prefix := strings.Join(segs[:i], ".")
				if _, ok := g.edges[prefix]; ok {
					g.edges[n] = append(g.edges[n], prefix)
				}
			}
		}
	}
	return g
}

// SuperCycles finds every strongly connected group of constructors in the
// super relation. A table without cycles returns nil.
func SuperCycles(t *Table) []SuperCycle {
	return findCycles(buildSuperGraph(t, false), "super constructor cycle")
}

func findCycles(g superGraph, what string) []SuperCycle {
	var cycles []SuperCycle
	for _, scc := range tarjanSCC(g) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], g) {
			continue
		}
		path := reconstructCyclePath(scc, g)
		cycles = append(cycles, SuperCycle{
			Path:    path,
			Message: fmt.Sprintf("%s: %s", what, strings.Join(path, " -> ")),
		})
	}
	return cycles
}

// ApplyOrder returns the entries with every constructor after the entry it
// derives from and every entry after the entries for its enclosing paths.
// Unrelated entries keep table order.
func ApplyOrder(t *Table) ([]Entry, error) {
	g := buildSuperGraph(t, true)
	if cycles := findCycles(g, "entry dependency cycle"); len(cycles) > 0 {
		return nil, fmt.Errorf("policy: %s", cycles[0].Message)
	}
	byPath := make(map[string]Entry, len(t.Entries))
	for _, e := range t.Entries {
		if _, ok := byPath[e.Path]; !ok {
			byPath[e.Path] = e
		}
	}
	// Tarjan emits a node only after everything it reaches, so supers come
	// out first.
	var order []Entry
	for _, scc := range tarjanSCC(g) {
		for _, p := range scc {
			order = append(order, byPath[p])
		}
	}
	return order, nil
}

func hasSelfLoop(node string, g superGraph) bool {
	for _, w := range g.edges[node] {
		if w == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Edges to names outside the table (root constructors, world slots) are
// ignored.
func tarjanSCC(g superGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, inTable := g.edges[w]; !inTable {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks super edges inside an SCC until it returns to
// the first node.
func reconstructCyclePath(scc []string, g superGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[len(scc)-1]
	path := []string{start}
	visited := map[string]bool{}
	for current := start; ; {
		visited[current] = true
		next := ""
		for _, w := range g.edges[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
