package parser

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/shack/shacktest"

	"github.com/stretchr/testify/require"
)

func makeThreads(n int) []chatty.Thread {
	date := shacktest.Date(2024, 5, 1, 8, 30)
	threads := make([]chatty.Thread, n)
	for i := range threads {
		root := int64(1000 + i*10)
		threads[i] = shacktest.Thread(
			shacktest.Post(root, 0, "op", fmt.Sprintf("thread %d", i), date),
			shacktest.Post(root+1, 1, "replier", "reply", date),
		)
	}
	return threads
}

func TestParsePage(t *testing.T) {
	threads := makeThreads(3)
	markup := NormalizePage(shacktest.RenderPage(2, 81, threads, true, 12345, 42.5))

	page, err := ParsePage(markup)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, page.CurrentPage)
	require.Equal(t, 3, page.LastPage)
	require.Len(t, page.Threads, 3)
	for i, thread := range page.Threads {
		require.Equal(t, threads[i].ID, thread.ID)
		require.Len(t, thread.Posts, 2)
		require.Equal(t, fmt.Sprintf("thread %d", i), thread.Root().Body)
		require.Equal(t, 1, thread.Posts[1].Depth)
	}
}

func TestParsePageLastPage(t *testing.T) {
	cases := []struct {
		threadCount int
		lastPage    int
	}{
		{threadCount: 0, lastPage: 1},
		{threadCount: 40, lastPage: 1},
		{threadCount: 41, lastPage: 2},
		{threadCount: 1234, lastPage: 31},
	}
	for _, test := range cases {
		page, err := ParsePage(NormalizePage(shacktest.RenderPage(1, test.threadCount, nil, true, 5, 1)))
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, test.lastPage, page.LastPage, "thread count %d", test.threadCount)
		require.Equal(t, 1, page.CurrentPage)
	}
}

func TestNormalizePageIgnoresVolatileChrome(t *testing.T) {
	threads := makeThreads(2)
	first := NormalizePage(shacktest.RenderPage(1, 2, threads, true, 1000, 10.5))
	second := NormalizePage(shacktest.RenderPage(1, 2, threads, true, 1001, 99))
	require.Equal(t, first, second)
	require.NotContains(t, first, "Comments")
	require.NotContains(t, first, `class="progress"`)
}

func TestParsePageTooManyThreads(t *testing.T) {
	markup := NormalizePage(shacktest.RenderPage(1, 100, makeThreads(41), true, 5, 1))
	_, err := ParsePage(markup)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too many threads")
}

func TestParsePageStopsAtMissingThread(t *testing.T) {
	threads := makeThreads(2)
	markup := NormalizePage(shacktest.RenderPage(1, 3, threads, true, 5, 1))
	// a trailing root without a body ends the page
	markup = strings.Replace(markup, "</div></div></body>", `<div class="fullpost op fpmod_ontopic"></div></div></div></body>`, 1)

	page, err := ParsePage(markup)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, page.Threads, 2)
}

func TestParseBodies(t *testing.T) {
	date := shacktest.Date(2023, 12, 24, 23, 59)
	thread := shacktest.Thread(
		shacktest.Post(500, 0, "alice", `root <span class="jt_spoiler" onclick="return doSpoiler(event);">s</span>`, date),
		shacktest.Post(501, 1, "bob &amp; co", "reply &lt;tag&gt;", date.Add(-5*time.Minute)),
	)
	thread.Posts[0].AuthorID = 42
	thread.Posts[0].Flair = chatty.Flair{IsTenYear: true, IsModerator: true, Mercury: chatty.MercurySuper}
	thread.Posts[1].Category = chatty.Political
	thread.Posts[1].IsFrozen = true
	thread.Posts[1].Flair = chatty.Flair{Mercury: chatty.MercuryBasic}

	bodies, err := ParseThreadBodies(shacktest.RenderBodies(thread))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, bodies, 2)

	root := bodies[500]
	require.Equal(t, int64(42), root.AuthorID)
	require.Equal(t, "alice", root.Author)
	require.Equal(t, chatty.Flair{IsTenYear: true, IsModerator: true, Mercury: chatty.MercurySuper}, root.Flair)
	require.Equal(t, `root <span class="jt_spoiler" onclick="this.className = '';">s</span>`, root.Body)
	require.True(t, date.Equal(root.Date))

	reply := bodies[501]
	require.Equal(t, chatty.Political, reply.Category)
	require.True(t, reply.IsFrozen)
	require.Equal(t, chatty.Flair{Mercury: chatty.MercuryBasic}, reply.Flair)
	require.Equal(t, "reply &lt;tag&gt;", reply.Body)

	var post chatty.Post
	reply.Apply(&post)
	require.True(t, post.HasBody)
	require.True(t, post.IsFrozen)
	require.Equal(t, "reply &lt;tag&gt;", post.Body)
}

func TestParseBodiesEmpty(t *testing.T) {
	bodies, err := ParseThreadBodies(`<div class="frame"></div>`)
	require.NoError(t, err)
	require.Len(t, bodies, 0)
}
