package telemetry

import "strings"

// API is the sink every component reports to. Implementations decide whether
// a report becomes a log line, a metric, a span event or a test record.
//
// Report ids name the component that is affected, not the line of code:
// `<struct>.<method>` in lowercase with dashes between words (ex.
// `client.get-thread-tree`). Extra detail goes into params or a wrapped error.
type API interface {
	// ReportBroken is for failures an operator should look at.
	ReportBroken(id string, params ...any)
	// ReportWarning is for degraded but recoverable behavior.
	ReportWarning(id string, params ...any)
	// ReportDebug is dropped unless the process runs verbose.
	ReportDebug(msg string, params ...any)
	// ReportCount records a gauge reading, successive reports are samples
	// over time and should not be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id it reports with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI wraps inner so that ids become `<namespace>.<id>`. Nested
// scopes read outermost first.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	var b strings.Builder
	b.Grow(len(s.namespace) + 1 + len(id))
	b.WriteString(s.namespace)
	b.WriteByte('.')
	b.WriteString(id)
	return b.String()
}

// Scope returns a child scope below this one.
func (s ScopedAPI) Scope(namespace string) ScopedAPI {
	return NewScopedAPI(namespace, s)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
