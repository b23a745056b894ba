package telemetry

import (
	"fmt"
	"sync"
)

// Report is a single call recorded by TestAPI.
type Report struct {
	Kind   string
	ID     string
	Params []any
}

// TestAPI records every report so tests can assert on them.
type TestAPI struct {
	mutex   *sync.Mutex
	reports *[]Report
}

func NewTestAPI() TestAPI {
	return TestAPI{mutex: &sync.Mutex{}, reports: &[]Report{}}
}

func (t TestAPI) record(kind, id string, params []any) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	*t.reports = append(*t.reports, Report{Kind: kind, ID: id, Params: params})
}

func (t TestAPI) ReportBroken(id string, params ...any) {
	t.record("broken", id, params)
}

func (t TestAPI) ReportWarning(id string, params ...any) {
	t.record("warning", id, params)
}

func (t TestAPI) ReportDebug(msg string, params ...any) {
	t.record("debug", msg, params)
}

func (t TestAPI) ReportCount(id string, count int64) {
	t.record("count", id, []any{count})
}

// Reports returns every recorded report of a given kind.
func (t TestAPI) Reports(kind string) []Report {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	var out []Report
	for _, r := range *t.reports {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Broken returns the ids of every broken report formatted for quick assertions.
func (t TestAPI) Broken() []string {
	var out []string
	for _, r := range t.Reports("broken") {
		out = append(out, fmt.Sprintf("%s %v", r.ID, r.Params))
	}
	return out
}
