package anomaly

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// VotePolicy decides how ensemble member votes combine.
type VotePolicy string

const (
	VoteMajority  VotePolicy = "majority"
	VoteUnanimous VotePolicy = "unanimous"
	VoteAny       VotePolicy = "any"
)

// Ensemble runs several detectors and flags a (column, row) cell according
// to the vote policy. Counts come from the post-vote flagged set, so a
// cell flagged by every member is still counted once.
type Ensemble struct {
	Detectors []Detector
	Policy    VotePolicy
	logger    *slog.Logger
}

func (e *Ensemble) Method() Method { return MethodEnsemble }

func (e *Ensemble) Detect(ds *dataset.Dataset) (*Report, error) {
	if len(e.Detectors) < 2 {
		return nil, fmt.Errorf("ensemble needs at least 2 detectors, have %d", len(e.Detectors))
	}
	rep := newReport(MethodEnsemble, ds.Rows())

	type cell struct {
		column string
		row    int
	}
	votes := map[cell]int{}
	for _, d := range e.Detectors {
		sub, err := d.Detect(ds)
		if err != nil {
			return nil, fmt.Errorf("ensemble member %s: %w", d.Method(), err)
		}
		rep.Warnings = append(rep.Warnings, sub.Warnings...)
		for col, set := range sub.IndicesByColumn {
			for row := range set {
				votes[cell{col, row}]++
			}
		}
	}

	n := len(e.Detectors)
	needed := 1
	switch e.Policy {
	case VoteMajority:
		needed = n/2 + 1
	case VoteUnanimous:
		needed = n
	case VoteAny:
		needed = 1
	default:
		return nil, fmt.Errorf("unknown vote policy %q", e.Policy)
	}

	for c, v := range votes {
		if v >= needed {
			rep.flag(c.column, []int{c.row})
		}
	}
	rep.finish()
	e.log().Debug("ensemble vote complete",
		"policy", e.Policy,
		"members", n,
		"flagged_cells", rep.TotalAnomalies)
	return rep, nil
}

func (e *Ensemble) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}
