// Package graph parses edge lists given as U-V tokens and formats and
// measures the records generators publish: a space separated list of
// removed edges, where an empty record means no edge had to go.
package graph

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNoEdges     = errors.New("graph: no edges")
	ErrInvalidEdge = errors.New("graph: invalid edge")
)

// Edge connects two vertices. U and V are the labels from the input;
// u and v index the dense vertex table of the owning Graph.
type Edge struct {
	U, V int
	u, v int
}

// Graph is an undirected edge list with densely numbered vertices.
type Graph struct {
	Edges    []Edge
	vertices int
}

// Parse reads one edge per argument, each of the form U-V with U and V
// non-negative decimal integers.
func Parse(args []string) (*Graph, error) {
	if len(args) == 0 {
		return nil, ErrNoEdges
	}

	g := &Graph{Edges: make([]Edge, 0, len(args))}
	index := make(map[int]int)
	vertex := func(label int) int {
		i, ok := index[label]
		if !ok {
			i = len(index)
			index[label] = i
		}
		return i
	}

	for _, arg := range args {
		u, v, err := parseEdge(arg)
		if err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, Edge{U: u, V: v, u: vertex(u), v: vertex(v)})
	}
	g.vertices = len(index)
	return g, nil
}

func parseEdge(s string) (int, int, error) {
	left, right, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w %q: want U-V", ErrInvalidEdge, s)
	}
	u, err := parseVertex(left)
	if err != nil {
		return 0, 0, fmt.Errorf("%w %q: %w", ErrInvalidEdge, s, err)
	}
	v, err := parseVertex(right)
	if err != nil {
		return 0, 0, fmt.Errorf("%w %q: %w", ErrInvalidEdge, s, err)
	}
	return u, v, nil
}

func parseVertex(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty vertex")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("vertex %q is not a non-negative integer", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("vertex %q: %w", s, err)
	}
	return n, nil
}

// Vertices returns the number of distinct vertices.
func (g *Graph) Vertices() int { return g.vertices }

// Endpoints returns the dense vertex indices of e.
func (e Edge) Endpoints() (int, int) { return e.u, e.v }

// String formats e as U-V.
func (e Edge) String() string { return string(AppendEdge(nil, e)) }

// AppendEdge appends the U-V form of e to dst.
func AppendEdge(dst []byte, e Edge) []byte {
	dst = strconv.AppendInt(dst, int64(e.U), 10)
	dst = append(dst, '-')
	return strconv.AppendInt(dst, int64(e.V), 10)
}

// EdgeLen returns len(AppendEdge(nil, e)) without building it.
func EdgeLen(e Edge) int {
	return digits(e.U) + 1 + digits(e.V)
}

func digits(n int) int {
	d := 1
	for n >= 10 {
		n /= 10
		d++
	}
	return d
}

// CountEdges returns the number of edges in a record. The empty record
// has none and marks a 3-colorable graph.
func CountEdges(record []byte) int {
	count := 0
	for len(record) > 0 {
		record = bytes.TrimLeft(record, " ")
		if len(record) == 0 {
			break
		}
		count++
		if i := bytes.IndexByte(record, ' '); i >= 0 {
			record = record[i:]
		} else {
			break
		}
	}
	return count
}
