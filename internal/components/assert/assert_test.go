package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sink interface{ Write() }

type fileSink struct{}

func (*fileSink) Write() {}

func TestNotNil(t *testing.T) {
	var typed *fileSink
	var iface sink = typed

	require.Panics(t, func() { NotNil(nil) })
	require.PanicsWithValue(t, "expected *assert.fileSink to be not nil", func() { NotNil(iface) })
	require.NotPanics(t, func() { NotNil(&fileSink{}) })
	require.NotPanics(t, func() { NotNil(3) })
}

func TestNotEmptyStr(t *testing.T) {
	require.Panics(t, func() { NotEmptyStr("") })
	require.NotPanics(t, func() { NotEmptyStr("https://www.shacknews.com") })
}
