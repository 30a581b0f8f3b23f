// Package report delivers the supervisor's findings: each strictly
// better solution, and the final verdict when a graph turns out to be
// 3-colorable.
package report

import (
	"fmt"
	"io"
	"sync"
)

// Reporter receives supervisor findings. Implementations must not block
// for long; they are called from the drain loop.
type Reporter interface {
	// Solution reports a new best record with the given edge count.
	Solution(edges int, record string)
	// Solvable reports a record with no removed edges.
	Solvable()
}

// Printer writes findings as plain text lines.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Solution(edges int, record string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "Solution with %d edges: %s\n", edges, record)
}

func (p *Printer) Solvable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, "The graph is 3-colorable!")
}

// Multi fans findings out to several reporters in order.
type Multi []Reporter

func (m Multi) Solution(edges int, record string) {
	for _, r := range m {
		r.Solution(edges, record)
	}
}

func (m Multi) Solvable() {
	for _, r := range m {
		r.Solvable()
	}
}
