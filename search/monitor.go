package search

import "github.com/poiesic/mailrecall/core"

// SearchMonitor provides hooks to observe a query.
// Implement this interface to trace index hits and hydration.
type SearchMonitor interface {
	Start(query string, filter map[string]string)
	AfterIndexQuery(hits []*core.IndexHit)
	Skipped(id string, err error)
	Finish(results []Summary)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ map[string]string) {}
func (n *noopMonitor) AfterIndexQuery(_ []*core.IndexHit)  {}
func (n *noopMonitor) Skipped(_ string, _ error)           {}
func (n *noopMonitor) Finish(_ []Summary)                  {}
