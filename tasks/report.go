/*
report.go - Completion reporting

PURPOSE:
  Aggregates tasks into per-assignee completion statistics for the admin
  dashboard. Rates are computed with decimal arithmetic so 1/3 done renders
  as 33.33, not 33.329999.
*/
package tasks

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AssigneeStats summarizes one assignee's workload.
type AssigneeStats struct {
	Assignee string
	Total    int
	Done     int
	Pending  int

	// CompletionRate is a percentage rounded to two decimal places.
	CompletionRate decimal.Decimal
}

// CompletionReport is the per-assignee breakdown plus the overall rate.
type CompletionReport struct {
	Assignees []AssigneeStats
	Total     int
	Done      int
	Overall   decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// BuildCompletionReport aggregates tasks by assignee. Assignees are
// ordered alphabetically; an empty assignee is reported as-is rather than
// dropped so misfiled rows stay visible.
func BuildCompletionReport(ts []Task) CompletionReport {
	type agg struct{ total, done int }
	byAssignee := make(map[string]*agg)

	report := CompletionReport{Total: len(ts)}
	for _, t := range ts {
		a, ok := byAssignee[t.Assignee]
		if !ok {
			a = &agg{}
			byAssignee[t.Assignee] = a
		}
		a.total++
		if t.Done() {
			a.done++
			report.Done++
		}
	}

	names := make([]string, 0, len(byAssignee))
	for name := range byAssignee {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := byAssignee[name]
		report.Assignees = append(report.Assignees, AssigneeStats{
			Assignee:       name,
			Total:          a.total,
			Done:           a.done,
			Pending:        a.total - a.done,
			CompletionRate: rate(a.done, a.total),
		})
	}
	report.Overall = rate(report.Done, report.Total)
	return report
}

func rate(done, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(done)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}
