package ledger

import (
	"sort"
	"time"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
)

// PatternStat aggregates decisions for one kind|target pattern.
type PatternStat struct {
	Pattern      string  `json:"pattern"`
	Count        int     `json:"count"`
	ApprovalRate float64 `json:"approval_rate"`
}

// ResponseStats summarizes response times for one criticality level.
type ResponseStats struct {
	Count         int     `json:"count"`
	MeanSeconds   float64 `json:"mean_seconds"`
	MedianSeconds float64 `json:"median_seconds"`
}

// Insights is the learning summary exposed on the stats surface.
type Insights struct {
	TotalEntries          int                              `json:"total_entries"`
	ApprovalRate          float64                          `json:"approval_rate"`
	ApprovedPatterns      []PatternStat                    `json:"approved_patterns"`
	DeniedPatterns        []PatternStat                    `json:"denied_patterns"`
	ResponseByCriticality map[approval.Level]ResponseStats `json:"response_by_criticality"`
}

const (
	patternMinOccurrences = 3
	approvedPatternFloor  = 0.7
	deniedPatternCeiling  = 0.3
)

// Insights aggregates the full history: overall approval rate, recurring
// approved/denied kind|target patterns and response-time statistics per
// criticality level.
func (l *Ledger) Insights() Insights {
	entries, _ := l.snapshot()

	ins := Insights{
		TotalEntries:          len(entries),
		ResponseByCriticality: make(map[approval.Level]ResponseStats),
	}
	if len(entries) == 0 {
		return ins
	}

	type counts struct{ approved, denied int }
	patterns := make(map[string]*counts)
	responses := make(map[approval.Level][]float64)

	var approved int
	for i := range entries {
		e := &entries[i]
		switch e.Decision {
		case feedback.DecisionApproved:
			approved++
		case feedback.DecisionAutoApproved:
			approved++
		}

		if e.Decision == feedback.DecisionApproved || e.Decision == feedback.DecisionDenied {
			key := e.ActionKind + "|" + e.Target
			c, ok := patterns[key]
			if !ok {
				c = &counts{}
				patterns[key] = c
			}
			if e.Decision == feedback.DecisionApproved {
				c.approved++
			} else {
				c.denied++
			}
		}

		if e.ResponseTimeSeconds != nil {
			responses[e.Criticality] = append(responses[e.Criticality], *e.ResponseTimeSeconds)
		}
	}

	ins.ApprovalRate = float64(approved) / float64(len(entries))

	for key, c := range patterns {
		total := c.approved + c.denied
		if total < patternMinOccurrences {
			continue
		}
		rate := float64(c.approved) / float64(total)
		stat := PatternStat{Pattern: key, Count: total, ApprovalRate: rate}
		switch {
		case rate > approvedPatternFloor:
			ins.ApprovedPatterns = append(ins.ApprovedPatterns, stat)
		case rate < deniedPatternCeiling:
			ins.DeniedPatterns = append(ins.DeniedPatterns, stat)
		}
	}
	sort.Slice(ins.ApprovedPatterns, func(i, j int) bool {
		return ins.ApprovedPatterns[i].Count > ins.ApprovedPatterns[j].Count
	})
	sort.Slice(ins.DeniedPatterns, func(i, j int) bool {
		return ins.DeniedPatterns[i].Count > ins.DeniedPatterns[j].Count
	})

	for level, times := range responses {
		sort.Float64s(times)
		var sum float64
		for _, t := range times {
			sum += t
		}
		mid := times[len(times)/2]
		if len(times)%2 == 0 {
			mid = (times[len(times)/2-1] + times[len(times)/2]) / 2
		}
		ins.ResponseByCriticality[level] = ResponseStats{
			Count:         len(times),
			MeanSeconds:   sum / float64(len(times)),
			MedianSeconds: mid,
		}
	}

	return ins
}

const (
	suggestionSample     = 10
	quickApprovalCutoff  = 60 * time.Second
	quickApprovalShare   = 0.8
	denialShare          = 0.6
	suggestionMinHistory = 5
)

// SuggestAdjustment returns "lower" when the human habitually approves
// similar actions within a minute, "higher" when they mostly deny them, and
// "" when the history is too thin or inconclusive. Advisory only.
func (l *Ledger) SuggestAdjustment(a action.Action) string {
	similar := l.SimilarActions(a, 0)
	if len(similar) > suggestionSample {
		similar = similar[:suggestionSample]
	}

	var quick, slow, denied int
	for _, s := range similar {
		switch s.Entry.Decision {
		case feedback.DecisionApproved:
			if s.Entry.ResponseTimeSeconds != nil && *s.Entry.ResponseTimeSeconds < quickApprovalCutoff.Seconds() {
				quick++
			} else {
				slow++
			}
		case feedback.DecisionDenied:
			denied++
		}
	}

	total := quick + slow + denied
	if total < suggestionMinHistory {
		return ""
	}
	switch {
	case float64(quick)/float64(total) > quickApprovalShare:
		return "lower"
	case float64(denied)/float64(total) > denialShare:
		return "higher"
	}
	return ""
}
