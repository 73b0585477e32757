package processor

import "github.com/jdziat/simple-batch-jobs/pkg/core"

// Summary aggregates the outcomes of one batch.
type Summary struct {
	Attempted int  // iterations that reached a job or a queue error
	Succeeded int
	Failed    int
	Requeued  int
	Drained   bool // the pending queue reported empty
}

// Summarize counts outcomes by kind.
func Summarize(outcomes []core.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Kind {
		case core.OutcomeSuccess:
			s.Attempted++
			s.Succeeded++
		case core.OutcomeFailure:
			s.Attempted++
			s.Failed++
			if o.Requeued {
				s.Requeued++
			}
		case core.OutcomeEmpty:
			s.Drained = true
		}
	}
	return s
}
