package scanner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClip(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		before []string
		after  string
		expect string
	}{
		{
			name:   "single marker",
			data:   `<div class="postbody">hello</div>`,
			before: []string{`<div class="postbody"`, ">"},
			after:  "</div>",
			expect: "hello",
		},
		{
			name:   "narrowing markers",
			data:   `<a class="shackmsg" rel="nofollow" href="?id=1234">x</a>`,
			before: []string{`<a class="shackmsg"`, "id=", "="},
			after:  `"`,
			expect: "1234",
		},
		{
			name:   "empty region",
			data:   `<b></b>`,
			before: []string{"<b", ">"},
			after:  "<",
			expect: "",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			s := New(test.data)
			got := s.Clip(test.before, test.after)
			if s.Err() != nil {
				t.Fatal(s.Err())
			}
			require.Equal(t, test.expect, got)
		})
	}
}

func TestClipAdvances(t *testing.T) {
	s := New("[a][b][c]")
	var got []string
	for s.Peek(Primary, "[") != -1 {
		got = append(got, s.Clip([]string{"["}, "]"))
	}
	require.NoError(t, s.Err())
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSeekMissingMarker(t *testing.T) {
	s := New("abc<div>")
	s.Seek(Primary, "<div>")
	require.NoError(t, s.Err())
	require.Equal(t, 3, s.Cursor(Primary))

	s.Seek(Primary, "<span>")
	var parseErr *ParseError
	require.True(t, errors.As(s.Err(), &parseErr))
	require.Equal(t, "<span>", parseErr.Marker)
	require.Equal(t, 3, parseErr.Offset)

	// every call after the first failure is a no-op
	require.Equal(t, -1, s.Peek(Primary, "abc"))
	require.Equal(t, "", s.Clip([]string{"a"}, "c"))
	require.Equal(t, "<span>", parseErr.Marker)
}

func TestPeekDoesNotMove(t *testing.T) {
	s := New("xxmarkerxxmarker")
	require.Equal(t, 2, s.Peek(Primary, "marker"))
	require.Equal(t, 0, s.Cursor(Primary))

	s.Jump(Primary, 3)
	require.Equal(t, 10, s.Peek(Primary, "marker"))
	require.Equal(t, -1, s.Peek(Primary, "absent"))
}

func TestIncrementPastEnd(t *testing.T) {
	s := New("ab")
	s.Jump(Primary, 2)
	s.Increment(Primary)
	var parseErr *ParseError
	require.True(t, errors.As(s.Err(), &parseErr))
	require.Equal(t, 2, parseErr.Offset)
	require.Contains(t, parseErr.Error(), "end of data")
}
