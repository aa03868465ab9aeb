// Package graph records which patch files instantiate which abstractions.
package graph

import (
	"sort"

	"github.com/phobologic/pd4web/internal/model"
)

type edgeKey struct{ src, tgt string }

// Graph is a directed abstraction graph: an edge runs from the patch that
// instantiates an abstraction to the abstraction's file.
type Graph struct {
	edges map[edgeKey]string
	nodes map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		edges: make(map[edgeKey]string),
		nodes: make(map[string]struct{}),
	}
}

// AddNode registers a file that may have no edges, such as the top-level patch.
func (g *Graph) AddNode(path string) {
	g.nodes[path] = struct{}{}
}

// AddEdge records that source instantiates target. Repeated instantiations
// collapse into one edge; the first library seen for an edge is kept.
func (g *Graph) AddEdge(source, target, library string) {
	g.nodes[source] = struct{}{}
	g.nodes[target] = struct{}{}
	key := edgeKey{source, target}
	if _, ok := g.edges[key]; ok {
		return
	}
	g.edges[key] = library
}

// Edges returns the deduplicated edges sorted by source then target.
func (g *Graph) Edges() []model.Dependency {
	deps := make([]model.Dependency, 0, len(g.edges))
	for key, lib := range g.edges {
		deps = append(deps, model.Dependency{
			Source:  key.src,
			Target:  key.tgt,
			Library: lib,
		})
	}

	// Sort for deterministic output
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// FanIn returns, for every node, the number of distinct files that
// instantiate it.
func (g *Graph) FanIn() map[string]int {
	in := make(map[string]int, len(g.nodes))
	for node := range g.nodes {
		in[node] = 0
	}
	for key := range g.edges {
		in[key.tgt]++
	}
	return in
}

// LoadOrder returns the nodes reachable from root with every abstraction
// listed before the patches that use it. Cycles are broken at the first
// revisited node. Siblings are visited in sorted order.
func (g *Graph) LoadOrder(root string) []string {
	out := make(map[string][]string)
	for key := range g.edges {
		out[key.src] = append(out[key.src], key.tgt)
	}
	for _, targets := range out {
		sort.Strings(targets)
	}

	visited := make(map[string]struct{})
	var order []string
	var visit func(string)
	visit = func(node string) {
		if _, ok := visited[node]; ok {
			return
		}
		visited[node] = struct{}{}
		for _, next := range out[node] {
			visit(next)
		}
		order = append(order, node)
	}

	if _, ok := g.nodes[root]; ok {
		visit(root)
	}
	return order
}

// Nodes returns every node in sorted order.
func (g *Graph) Nodes() []string {
	return sortedKeys(g.nodes)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
