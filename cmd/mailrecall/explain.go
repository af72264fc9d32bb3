package main

import (
	"fmt"
	"io"

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/search"
)

// explainMonitor prints each stage of a search.
type explainMonitor struct {
	w io.Writer
}

func newExplainMonitor(w io.Writer) *explainMonitor {
	return &explainMonitor{w: w}
}

func (m *explainMonitor) Start(query string, filter map[string]string) {
	if len(filter) == 0 {
		fmt.Fprintf(m.w, "query: %q\n", query)
		return
	}
	fmt.Fprintf(m.w, "query: %q filter: %v\n", query, filter)
}

func (m *explainMonitor) AfterIndexQuery(hits []*core.IndexHit) {
	fmt.Fprintf(m.w, "index returned %d hit(s)\n", len(hits))
	for i, hit := range hits {
		fmt.Fprintf(m.w, "  %d. %s distance=%.4f\n", i+1, hit.ID, hit.Distance)
	}
}

func (m *explainMonitor) Skipped(id string, err error) {
	if err != nil {
		fmt.Fprintf(m.w, "skipped %s: %v\n", id, err)
		return
	}
	fmt.Fprintf(m.w, "skipped %s: not in record store\n", id)
}

func (m *explainMonitor) Finish(results []search.Summary) {
	fmt.Fprintf(m.w, "returning %d result(s)\n\n", len(results))
}
