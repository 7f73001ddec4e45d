package search

import (
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/storage"
)

// Monitor observes the stages of one search call.
type Monitor interface {
	Start(query string, k int)
	ModeChosen(mode storage.Mode, reason string)
	AfterCandidateScan(count int)
	Finish(results []*core.SearchResult)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)               {}
func (n *noopMonitor) ModeChosen(_ storage.Mode, _ string) {}
func (n *noopMonitor) AfterCandidateScan(_ int)            {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)       {}
