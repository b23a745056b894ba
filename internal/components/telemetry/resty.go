package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_status   = "resty.status"
)

// MessageOutput receives a transcript of every completed exchange, keyed by
// a sequence number unique to the instrumented client.
type MessageOutput interface {
	Write(id string, contents string)
}

type restyHooks struct {
	tel    API
	tracer trace.Tracer
	output MessageOutput
	seq    *atomic.Uint64
}

type inflightKey struct{}

type inflight struct {
	seq uint64
	// monotonic, only used for elapsed time
	started time.Time
	span    trace.Span
}

// InstrumentResty wraps every request made by client in a span and reports
// its outcome. output may be nil.
func InstrumentResty(client *resty.Client, tel API, output MessageOutput) {
	h := restyHooks{
		tel:    tel,
		tracer: otel.Tracer("resty"),
		output: output,
		seq:    &atomic.Uint64{},
	}
	client.OnBeforeRequest(h.before)
	client.OnAfterResponse(h.after)
	client.OnError(h.failed)
}

func (h restyHooks) before(_ *resty.Client, req *resty.Request) error {
	ctx, span := h.tracer.Start(req.Context(), "http "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
	f := inflight{seq: h.seq.Add(1), started: time.Now(), span: span}
	req.SetContext(context.WithValue(ctx, inflightKey{}, f))
	h.tel.ReportDebug(report_resty_request, f.seq, req.Method, req.URL)
	return nil
}

func lookup(ctx context.Context) (inflight, bool) {
	f, ok := ctx.Value(inflightKey{}).(inflight)
	return f, ok
}

func (h restyHooks) after(_ *resty.Client, res *resty.Response) error {
	f, ok := lookup(res.Request.Context())
	if !ok {
		return nil
	}
	defer f.span.End()

	if res.Request.RawRequest != nil {
		f.span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	}
	if res.RawResponse != nil {
		f.span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	}
	code, desc := httpconv.ClientStatus(res.StatusCode())
	f.span.SetStatus(code, desc)
	if code == codes.Error {
		h.tel.ReportWarning(report_resty_status, res.Request.Method, res.Request.URL, res.StatusCode())
	}

	h.tel.ReportDebug(report_resty_response, f.seq, res.Status(), time.Since(f.started).String())
	if h.output != nil {
		h.output.Write(fmt.Sprintf("%05d", f.seq), transcript(res))
	}
	return nil
}

func (h restyHooks) failed(req *resty.Request, err error) {
	var elapsed time.Duration
	if f, ok := lookup(req.Context()); ok {
		elapsed = time.Since(f.started)
		f.span.RecordError(err)
		f.span.SetStatus(codes.Error, "request failed")
		f.span.End()
	}
	h.tel.ReportBroken(report_resty_response, err, req.Method, req.URL, elapsed)
}

func writeHeaders(b *strings.Builder, prefix string, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(b, "%s %s: %s\n", prefix, k, v)
		}
	}
	b.WriteString(prefix)
	b.WriteByte('\n')
}

// transcript renders an exchange in the style of `curl -v`: request lines
// prefixed with '>', response lines with '<', then the body.
func transcript(res *resty.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "> %s %s\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		writeHeaders(&b, ">", res.Request.RawRequest.Header)
	}
	fmt.Fprintf(&b, "< %s\n", res.Status())
	writeHeaders(&b, "<", res.Header())
	b.Write(res.Body())
	return b.String()
}
