package telemetry

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	inner := NewTestAPI()
	scoped := NewScopedAPI("scrape", inner).Scope("client")

	scoped.ReportBroken("get-page", "boom")
	scoped.ReportWarning("probe")
	scoped.ReportCount("threads", 12)

	broken := inner.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "scrape.client.get-page", broken[0].ID)
	require.Equal(t, []any{"boom"}, broken[0].Params)

	count := inner.Reports("count")
	require.Len(t, count, 1)
	require.Equal(t, "scrape.client.threads", count[0].ID)
	require.Equal(t, []any{int64(12)}, count[0].Params)

	require.Len(t, inner.Reports("warning"), 1)
	require.Len(t, inner.Reports("debug"), 0)
}

func TestSlogAPI(t *testing.T) {
	var out bytes.Buffer
	InitSlogTo(&out, false)
	t.Cleanup(func() { InitSlog(false) })

	api := SlogAPI{}
	api.ReportBroken("store.save", errors.New("disk full"), 3)
	api.ReportDebug("hidden")
	api.ReportCount("scrape.threads", 40)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `id=store.save err="disk full" p1=3`)
	require.Contains(t, lines[1], "id=scrape.threads value=40")
}

func TestOtelAPIForwards(t *testing.T) {
	inner := NewTestAPI()
	api := NewOtelAPI(inner)

	api.ReportCount("events", 3)
	api.ReportCount("events", 4)
	api.ReportBroken("store.save", "disk full")

	require.Len(t, inner.Reports("count"), 2)
	require.Equal(t, []string{"store.save [disk full]"}, inner.Broken())
}

func TestEndpointSelection(t *testing.T) {
	cases := []struct {
		name     string
		endpoint Endpoint
		enabled  bool
		kind     string
	}{
		{name: "disabled", endpoint: Endpoint{}},
		{name: "http", endpoint: Endpoint{HttpEndpoint: "http://localhost:4318"}, enabled: true, kind: "http"},
		{name: "grpc wins", endpoint: Endpoint{GrpcEndpoint: "http://localhost:4317", HttpEndpoint: "http://localhost:4318"}, enabled: true, kind: "grpc"},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.enabled, test.endpoint.enabled())
			if test.enabled {
				kind, _ := test.endpoint.describe()
				require.Equal(t, test.kind, kind)
			}
		})
	}
}
