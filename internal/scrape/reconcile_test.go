package scrape

import (
	"errors"
	"testing"
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/parser"
	"chattysync/internal/shack/shacktest"

	"github.com/stretchr/testify/require"
)

var base = shacktest.Date(2024, 7, 1, 9, 0)

func listed(id int64, depth int, author string) chatty.Post {
	return chatty.Post{ID: id, Depth: depth, Category: chatty.OnTopic, Author: author}
}

func TestMergePagesLaterOccurrenceWins(t *testing.T) {
	a := shacktest.Thread(shacktest.Post(10, 0, "alice", "a", base))
	b := shacktest.Thread(shacktest.Post(20, 0, "bob", "b", base))
	bGrown := shacktest.Thread(
		shacktest.Post(20, 0, "bob", "b", base),
		shacktest.Post(21, 1, "carol", "c", base),
	)
	c := shacktest.Thread(shacktest.Post(30, 0, "carol", "c", base))

	pages := []chatty.CachedPage{
		{Page: chatty.Page{Threads: []chatty.Thread{b, a}}},
		{Page: chatty.Page{Threads: []chatty.Thread{bGrown, c}}},
	}
	threads := mergePages(pages)

	require.Len(t, threads, 3)
	require.Equal(t, int64(20), threads[0].ID)
	require.Len(t, threads[0].Posts, 2)
	require.Equal(t, int64(10), threads[1].ID)
	require.Equal(t, int64(30), threads[2].ID)

	threads[0].Posts[0].Body = "mutated"
	require.Equal(t, "b", pages[1].Page.Threads[0].Posts[0].Body)
}

func TestClassify(t *testing.T) {
	now := base.Add(2 * time.Hour)
	young := shacktest.Thread(shacktest.Post(10, 0, "alice", "a", base))
	old := shacktest.Thread(shacktest.Post(5, 0, "alice", "a", base.Add(-25*time.Hour)))

	upstream := func(exists bool, err error) func() (bool, error) {
		return func() (bool, error) { return exists, err }
	}

	cases := []struct {
		name     string
		thread   chatty.Thread
		expiry   time.Duration
		exists   func() (bool, error)
		expected disposition
		err      bool
	}{
		{name: "young and present", thread: young, expiry: 24 * time.Hour, exists: upstream(true, nil), expected: retained},
		{name: "young and gone", thread: young, expiry: 24 * time.Hour, exists: upstream(false, nil), expected: nuked},
		{name: "old and present", thread: old, expiry: 24 * time.Hour, exists: upstream(true, nil), expected: expired},
		{name: "old and gone", thread: old, expiry: 24 * time.Hour, exists: upstream(false, nil), expected: nuked},
		{name: "short expiry", thread: young, expiry: time.Hour, exists: upstream(true, nil), expected: expired},
		{name: "short expiry and gone", thread: young, expiry: time.Hour, exists: upstream(false, nil), expected: nuked},
		{name: "lookup fails", thread: young, expiry: 24 * time.Hour, exists: upstream(false, errors.New("timeout")), err: true},
		{name: "lookup fails when old", thread: old, expiry: 24 * time.Hour, exists: upstream(false, errors.New("timeout")), err: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := classify(c.thread, now, c.expiry, c.exists)
			if c.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.expected, d)
		})
	}
}

func TestApplyBodiesKeepsListedRoot(t *testing.T) {
	later := base.Add(time.Minute)
	thread := shacktest.Thread(shacktest.Post(10, 0, "alice", "listed root", base), listed(11, 1, "bob"))

	applyBodies(&thread, map[int64]parser.PostBody{
		10: {ID: 10, AuthorID: 5, Body: "rendered root", Date: later, IsFrozen: true},
		11: {ID: 11, AuthorID: 6, Body: "reply", Date: later},
	})

	root := thread.Posts[0]
	require.Equal(t, "listed root", root.Body)
	require.True(t, base.Equal(root.Date))
	require.Equal(t, int64(5), root.AuthorID)
	require.True(t, root.IsFrozen)

	reply := thread.Posts[1]
	require.True(t, reply.HasBody)
	require.Equal(t, "reply", reply.Body)
	require.True(t, later.Equal(reply.Date))
	require.Equal(t, int64(6), reply.AuthorID)
}

func TestCopyForward(t *testing.T) {
	prevRoot := shacktest.Post(10, 0, "alice", "root", base)
	prevRoot.Flair = chatty.Flair{IsModerator: true}
	prevReply := shacktest.Post(11, 1, "bob", "reply", base.Add(time.Minute))
	prevReply.AuthorID = 77
	prev := chatty.NewChatty([]chatty.Thread{shacktest.Thread(prevRoot, prevReply)})

	root := shacktest.Post(10, 0, "alice", "root", base)
	root.Category = chatty.Nws
	reply := listed(11, 1, "bob")
	reply.IsFrozen = true
	next := chatty.NewChatty([]chatty.Thread{
		shacktest.Thread(root, reply, listed(12, 1, "carol")),
		shacktest.Thread(shacktest.Post(20, 0, "dave", "root only", base)),
	})

	missing := copyForward(prev, next)
	require.Equal(t, []int64{10}, missing)

	got, _ := next.Post(11)
	require.True(t, got.HasBody)
	require.Equal(t, "reply", got.Body)
	require.Equal(t, int64(77), got.AuthorID)
	require.True(t, got.IsFrozen)

	gotRoot, _ := next.Post(10)
	require.Equal(t, chatty.Nws, gotRoot.Category)
	require.True(t, gotRoot.Flair.IsModerator)

	unloaded, _ := next.Post(12)
	require.False(t, unloaded.HasBody)
}

func TestPruneMissingBodies(t *testing.T) {
	thread := shacktest.Thread(
		shacktest.Post(10, 0, "alice", "root", base),
		shacktest.Post(11, 1, "bob", "a", base),
		listed(12, 1, "carol"),
		shacktest.Post(13, 2, "dave", "b", base),
		shacktest.Post(14, 3, "erin", "c", base),
		shacktest.Post(15, 1, "frank", "d", base),
	)
	headless := shacktest.Thread(listed(20, 0, "alice"), shacktest.Post(21, 1, "bob", "a", base))
	c := chatty.NewChatty([]chatty.Thread{thread, headless})

	removed := pruneMissingBodies(c)

	require.Equal(t, 5, removed)
	require.Len(t, c.Threads, 1)
	var ids []int64
	for _, p := range c.Threads[0].Posts {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []int64{10, 11, 15}, ids)
	_, ok := c.Post(13)
	require.False(t, ok)
}

func TestFinishPosts(t *testing.T) {
	root := shacktest.Post(10, 0, "alice", `Read more: <a href="https://www.shacknews.com/cortex/article/1/x">Some article</a>`, base)
	reply := shacktest.Post(11, 1, "bob", `see <a href="/article/5">this</a>`, base)
	c := chatty.NewChatty([]chatty.Thread{shacktest.Thread(root, reply)})

	finishPosts(c, "https://www.shacknews.com")

	require.True(t, c.Threads[0].Posts[0].IsCortex)
	require.False(t, c.Threads[0].Posts[1].IsCortex)
	require.Equal(t, `see <a href="https://www.shacknews.com/article/5">this</a>`, c.Threads[0].Posts[1].Body)
}
