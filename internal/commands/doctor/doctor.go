// Package doctor runs health checks over the local threadline setup: the
// config file, the stored session and the history snapshots.
package doctor

import (
	"context"
	"encoding/json"
)

// Status grades a check item. Higher values are worse.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

var statusNames = map[Status]string{
	StatusPass: "pass",
	StatusWarn: "warn",
	StatusFail: "fail",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckItem is one finding of a check. Fixable items are repaired by
// running the check again with fix enabled.
type CheckItem struct {
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Fixable bool   `json:"fixable,omitempty"`
}

// Result groups the items produced by one check.
type Result struct {
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

func (r *Result) add(label string, status Status, detail string) {
	r.Items = append(r.Items, CheckItem{Label: label, Status: status, Detail: detail})
}

func (r *Result) addFixable(label string, status Status, detail string) {
	r.Items = append(r.Items, CheckItem{Label: label, Status: status, Detail: detail, Fixable: true})
}

// Worst returns the most severe status among the items.
func (r Result) Worst() Status {
	worst := StatusPass
	for _, item := range r.Items {
		worst = max(worst, item.Status)
	}
	return worst
}

// Check inspects one part of the setup.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// Tally counts items by outcome. Fixable only counts items that still need
// a fix.
type Tally struct {
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Fixable int `json:"fixable"`
}

// Report is the outcome of a doctor run.
type Report struct {
	Summary Tally    `json:"summary"`
	Checks  []Result `json:"checks"`
}

// Healthy reports whether no item failed.
func (r Report) Healthy() bool {
	return r.Summary.Failed == 0
}

// Run executes checks in order. Once ctx ends the remaining checks are
// reported as skipped instead of run.
func Run(ctx context.Context, checks ...Check) Report {
	var report Report

	for _, check := range checks {
		var result Result
		if err := ctx.Err(); err != nil {
			result = Result{Name: check.Name()}
			result.add("skipped", StatusWarn, err.Error())
		} else {
			result = check.Run(ctx)
		}

		for _, item := range result.Items {
			report.Summary.count(item)
		}
		report.Checks = append(report.Checks, result)
	}

	return report
}

func (t *Tally) count(item CheckItem) {
	switch item.Status {
	case StatusPass:
		t.Passed++
	case StatusWarn:
		t.Warned++
	case StatusFail:
		t.Failed++
	}
	if item.Fixable && item.Status != StatusPass {
		t.Fixable++
	}
}
