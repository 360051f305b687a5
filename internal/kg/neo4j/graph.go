package neo4j

import (
	"regexp"
	"sort"
	"strings"
)

// ResourceLabel is carried by every node; uri is unique across it.
const ResourceLabel = "Resource"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a label or relationship type.
// Cypher cannot parameterise either, so anything else is rejected before querying.
func ValidIdentifier(s string) bool {
	return identifier.MatchString(s)
}

type Node struct {
	URI    string
	Labels []string
	Props  map[string]any
}

type Relationship struct {
	From  string
	Type  string
	To    string
	Props map[string]any
}

// Graph is a batch of nodes and relationships merged in one write.
type Graph struct {
	nodes  map[string]*Node
	order  []string
	rels   map[string]Relationship
	rorder []string
}

func NewGraph() *Graph {
	return &Graph{nodes: map[string]*Node{}, rels: map[string]Relationship{}}
}

// AddNode merges labels and properties into the node with the same URI.
func (g *Graph) AddNode(uri string, labels []string, props map[string]any) {
	n, ok := g.nodes[uri]
	if !ok {
		n = &Node{URI: uri, Props: map[string]any{}}
		g.nodes[uri] = n
		g.order = append(g.order, uri)
	}
	for _, l := range labels {
		if ValidIdentifier(l) && !contains(n.Labels, l) {
			n.Labels = append(n.Labels, l)
		}
	}
	for k, v := range props {
		if v == nil || v == "" {
			continue
		}
		n.Props[k] = v
	}
}

// AddRelationship ignores duplicates and types that are not valid identifiers.
func (g *Graph) AddRelationship(from, relType, to string, props map[string]any) bool {
	if !ValidIdentifier(relType) {
		return false
	}
	key := from + "\x00" + relType + "\x00" + to
	if _, ok := g.rels[key]; ok {
		return true
	}
	g.rels[key] = Relationship{From: from, Type: relType, To: to, Props: props}
	g.rorder = append(g.rorder, key)
	return true
}

func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, uri := range g.order {
		out = append(out, *g.nodes[uri])
	}
	return out
}

func (g *Graph) Relationships() []Relationship {
	out := make([]Relationship, 0, len(g.rorder))
	for _, k := range g.rorder {
		out = append(out, g.rels[k])
	}
	return out
}

func (g *Graph) Node(uri string) (Node, bool) {
	n, ok := g.nodes[uri]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// LabelCounts counts nodes per label.
func (g *Graph) LabelCounts() map[string]int {
	counts := map[string]int{}
	for _, n := range g.nodes {
		for _, l := range n.Labels {
			counts[l]++
		}
	}
	return counts
}

// labelKey groups nodes sharing the same label set so they merge in one statement.
func labelKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
