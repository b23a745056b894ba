package scrape

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/components/chrono"
	"chattysync/internal/components/telemetry"
	"chattysync/internal/download"
	"chattysync/internal/events"
	"chattysync/internal/provider"
	"chattysync/internal/shack"
	"chattysync/internal/shack/shacktest"
	"chattysync/internal/store"

	"github.com/stretchr/testify/require"
)

type countingSaver struct {
	store.FileStore
	saves int
}

func (c *countingSaver) Save(state chatty.ScrapeState) error {
	c.saves++
	return c.FileStore.Save(state)
}

type harness struct {
	server   *shacktest.Server
	client   shack.Client
	provider *provider.Provider
	saver    *countingSaver
	scraper  *Scraper
	tel      telemetry.TestAPI
	clock    chrono.FixedTime
}

var now = base.Add(3 * time.Hour)

func newHarness(t *testing.T) *harness {
	server := shacktest.NewServer(t)
	tel := telemetry.NewTestAPI()
	dl, err := download.New(download.Options{
		Client:            download.ClientOptions{BaseUrl: server.URL},
		Username:          shacktest.Username,
		Password:          shacktest.Password,
		RequestsPerSecond: 1000,
	}, tel)
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		server: server,
		client: shack.NewClient(dl, tel),
		saver:  &countingSaver{FileStore: store.NewFileStore(t.TempDir(), tel)},
		tel:    tel,
		clock:  chrono.FixedTime{At: now},
	}
	h.restart(store.Empty())
	return h
}

// restart builds a new provider and scraper on top of state, like the
// daemon does on boot.
func (h *harness) restart(state chatty.ScrapeState) {
	h.provider = provider.New(h.client, state.Events, provider.Options{}, h.clock, h.tel)
	h.scraper = New(h.client, h.provider, h.saver, nil, state, Options{
		BaseUrl: "https://www.shacknews.com",
		Events:  events.DefaultOptions(),
	}, h.clock, h.tel)
}

func (h *harness) cycle(t *testing.T) []chatty.Event {
	last := h.provider.GetLastEventID()
	err := h.scraper.Cycle(context.Background())
	require.NoError(t, err)
	events, err := h.provider.GetEvents(last)
	require.NoError(t, err)
	return events
}

func types(events []chatty.Event) []chatty.EventType {
	out := make([]chatty.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func threadA() chatty.Thread {
	return shacktest.Thread(
		shacktest.Post(100, 0, "alice", "thread a", base),
		shacktest.Post(102, 1, "bob", "reply to a", base.Add(time.Minute)),
	)
}

func threadB() chatty.Thread {
	return shacktest.Thread(
		shacktest.Post(101, 0, "carol", "thread b", base.Add(time.Minute)),
		shacktest.Post(103, 1, "dave", "reply to b", base.Add(2*time.Minute)),
		shacktest.Post(104, 2, "erin", "nested reply", base.Add(3*time.Minute)),
	)
}

func withPost(thread chatty.Thread, p chatty.Post) chatty.Thread {
	thread = thread.Clone()
	thread.Posts = append(thread.Posts, p)
	return thread
}

func TestFirstCycle(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB(), threadA())

	events := h.cycle(t)

	require.Len(t, events, 5)
	for i, e := range events {
		require.Equal(t, chatty.EventNewPost, e.Type)
		require.Equal(t, int64(i+1), e.ID)
	}
	require.Equal(t, "alice", events[1].NewPost.ParentAuthor)
	require.Equal(t, "reply to a", events[1].NewPost.Post.Body)

	snapshot, last, err := h.provider.GetSnapshotWithLastEventID()
	require.NoError(t, err)
	require.Equal(t, int64(5), last)
	require.Equal(t, int64(101), snapshot.Threads[0].ID)
	post, ok := snapshot.Post(104)
	require.True(t, ok)
	require.Equal(t, "nested reply", post.Body)
	require.True(t, post.Date.Equal(base.Add(3*time.Minute)))

	require.Equal(t, 1, h.saver.saves)
	require.Equal(t, 2, h.server.Requests("/frame_laryn.x"))
}

func TestQuietCycle(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB(), threadA())
	h.cycle(t)

	events := h.cycle(t)

	require.Empty(t, events)
	require.Equal(t, 1, h.saver.saves)
	require.Equal(t, 2, h.server.Requests("/frame_laryn.x"))
	require.Empty(t, h.tel.Broken())
}

func TestNewReply(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB(), threadA())
	h.cycle(t)

	h.server.SetListed(withPost(threadA(), shacktest.Post(105, 2, "frank", "late reply", base.Add(time.Hour))), threadB())
	events := h.cycle(t)

	require.Len(t, events, 1)
	require.Equal(t, int64(6), events[0].ID)
	require.Equal(t, int64(105), events[0].NewPost.PostID)
	require.Equal(t, int64(102), events[0].NewPost.Post.ParentID)
	require.Equal(t, "bob", events[0].NewPost.ParentAuthor)
	require.Equal(t, "late reply", events[0].NewPost.Post.Body)

	snapshot, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	require.Equal(t, int64(100), snapshot.Threads[0].ID)
	require.Equal(t, 2, h.saver.saves)
	require.Equal(t, 3, h.server.Requests("/frame_laryn.x"))
}

func TestNukedThread(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB(), threadA())
	h.cycle(t)

	h.server.Delete(100)
	events := h.cycle(t)

	require.Len(t, events, 1)
	require.Equal(t, chatty.EventCategoryChange, events[0].Type)
	require.Equal(t, int64(100), events[0].CategoryChange.PostID)
	require.Equal(t, chatty.Nuked, events[0].CategoryChange.Category)

	snapshot, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	_, ok := snapshot.Thread(100)
	require.False(t, ok)
}

func TestRetainedThread(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB(), threadA())
	h.cycle(t)

	h.server.Hide(100)
	events := h.cycle(t)

	require.Empty(t, events)
	snapshot, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	thread, ok := snapshot.Thread(100)
	require.True(t, ok)
	require.Len(t, thread.Posts, 2)
	require.Empty(t, snapshot.NukedThreadIDs)
}

func TestExpiredThread(t *testing.T) {
	h := newHarness(t)
	old := shacktest.Thread(shacktest.Post(50, 0, "alice", "yesterday", now.Add(-30*time.Hour)))
	h.server.SetListed(threadA(), old)
	h.cycle(t)

	h.server.Hide(50)
	events := h.cycle(t)

	require.Empty(t, events)
	snapshot, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	_, ok := snapshot.Thread(50)
	require.False(t, ok)
	require.Equal(t, []int64{50}, snapshot.ExpiredThreadIDs)
}

func TestOldThreadNuked(t *testing.T) {
	h := newHarness(t)
	old := shacktest.Thread(shacktest.Post(50, 0, "alice", "yesterday", now.Add(-30*time.Hour)))
	h.server.SetListed(threadA(), old)
	h.cycle(t)

	h.server.Delete(50)
	events := h.cycle(t)

	require.Len(t, events, 1)
	require.Equal(t, chatty.EventCategoryChange, events[0].Type)
	require.Equal(t, int64(50), events[0].CategoryChange.PostID)
	require.Equal(t, chatty.Nuked, events[0].CategoryChange.Category)

	snapshot, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	_, ok := snapshot.Thread(50)
	require.False(t, ok)
	require.Equal(t, []int64{50}, snapshot.NukedThreadIDs)
	require.Empty(t, snapshot.ExpiredThreadIDs)
}

func TestPostChanges(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB(), threadA())
	h.cycle(t)

	changed := threadA()
	changed.Posts[1].Category = chatty.Informative
	changed.Posts[1].IsFrozen = true
	h.server.SetListed(threadB(), changed)
	h.server.SetLols(chatty.LolCounts{Threads: map[int64]chatty.ThreadLols{
		101: {103: {chatty.TagLol: 3}},
	}})
	events := h.cycle(t)

	// threads are compared in ascending id order
	require.Equal(t, []chatty.EventType{
		chatty.EventCategoryChange,
		chatty.EventPostFreezeChange,
		chatty.EventLolCountsUpdate,
	}, types(events))
	require.Equal(t, chatty.Informative, events[0].CategoryChange.Category)
	require.True(t, events[1].PostFreezeChange.Frozen)
	require.Equal(t, []chatty.LolCountUpdate{{PostID: 103, Tag: chatty.TagLol, Count: 3}}, events[2].LolCountsUpdate.Updates)
	require.Equal(t, 3, h.provider.GetLolCounts().Post(101, 103)[chatty.TagLol])
}

func TestMissingBodyIsPruned(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB())
	h.server.OmitBody(103)

	events := h.cycle(t)

	require.Len(t, events, 1)
	require.Equal(t, int64(101), events[0].NewPost.PostID)
	snapshot, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.PostCount())
}

func TestManyPages(t *testing.T) {
	h := newHarness(t)
	var threads []chatty.Thread
	for i := 0; i < 45; i++ {
		id := int64(1000 - i)
		threads = append(threads, shacktest.Thread(shacktest.Post(id, 0, "alice", fmt.Sprintf("thread %d", id), base)))
	}
	h.server.SetListed(threads...)

	events := h.cycle(t)

	require.Len(t, events, 45)
	snapshot, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	require.Len(t, snapshot.Threads, 45)
	require.Len(t, h.scraper.State().Pages, 2)
}

func TestFailedCycleKeepsSnapshot(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadA())
	h.cycle(t)
	before, err := h.provider.GetSnapshot()
	require.NoError(t, err)

	h.server.Close()
	err = h.scraper.Cycle(context.Background())
	require.Error(t, err)

	after, err := h.provider.GetSnapshot()
	require.NoError(t, err)
	require.Same(t, before, after)
}

func TestRestartContinuesEvents(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadB(), threadA())
	h.cycle(t)

	state, err := h.saver.Load()
	require.NoError(t, err)
	h.restart(state)
	require.Equal(t, int64(5), h.provider.GetLastEventID())

	// an unchanged upstream after a restart is quiet
	require.Empty(t, h.cycle(t))

	h.server.SetListed(withPost(threadB(), shacktest.Post(106, 1, "frank", "after restart", base.Add(time.Hour))), threadA())
	events := h.cycle(t)
	require.Len(t, events, 1)
	require.Equal(t, int64(6), events[0].ID)
}

func TestRun(t *testing.T) {
	h := newHarness(t)
	h.server.SetListed(threadA())
	h.scraper.opts.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.scraper.Run(ctx)
		close(done)
	}()

	events, _, err := h.provider.WaitForEvent(ctx, 0, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 2)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
