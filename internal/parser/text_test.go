package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeExceptLtGt(t *testing.T) {
	cases := []struct {
		in     string
		expect string
	}{
		{in: "fish &amp; chips", expect: "fish & chips"},
		{in: "&lt;b&gt; stays", expect: "&lt;b&gt; stays"},
		{in: "&quot;quoted&quot; &#39;x&#39;", expect: `"quoted" 'x'`},
		{in: "plain", expect: "plain"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, DecodeExceptLtGt(test.in))
	}
}

func TestRemoveSpoilers(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		expect string
	}{
		{
			name:   "no spoiler",
			in:     "hello <b>world</b>",
			expect: "hello <b>world</b>",
		},
		{
			name:   "simple spoiler",
			in:     `before <span class="jt_spoiler" onclick="x">secret</span> after`,
			expect: `before <span class="jt_spoiler" onclick="x">_______</span> after`,
		},
		{
			name:   "nested spans",
			in:     `a <span class="jt_spoiler">x <span class="jt_red">red</span> y</span> b`,
			expect: `a <span class="jt_spoiler">_______</span> b`,
		},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expect, RemoveSpoilers(test.in))
		})
	}
}

func TestPreviewFromBody(t *testing.T) {
	body := `line one<br />line  two <span class="jt_spoiler">hidden</span> &amp; <i>done</i>`
	require.Equal(t, "line one line two _______ & done", PreviewFromBody(body))
}

func TestMakeSpoilersClickable(t *testing.T) {
	body := `<span class="jt_spoiler" onclick="return doSpoiler(event);">x</span>`
	require.Equal(t, `<span class="jt_spoiler" onclick="this.className = '';">x</span>`, MakeSpoilersClickable(body))
}

func TestFixRelativeLinks(t *testing.T) {
	body := `<a href="/article/1">a</a> <a target="_blank" href="/user/x">b</a> <a href="https://example.com/">c</a>`
	require.Equal(
		t,
		`<a href="https://www.shacknews.com/article/1">a</a> <a target="_blank" href="https://www.shacknews.com/user/x">b</a> <a href="https://example.com/">c</a>`,
		FixRelativeLinks(body, "https://www.shacknews.com"),
	)
}

func TestIsCortex(t *testing.T) {
	require.True(t, IsCortex(`Summary. Read more: <a href="https://www.shacknews.com/cortex/article/123/title">My Title</a>`))
	// the link text is the url itself for regular links
	require.False(t, IsCortex(`Read more: <a href="https://www.shacknews.com/cortex/article/123/title">https://www.shacknews.com/cortex</a>`))
	require.False(t, IsCortex("just a post"))
}
