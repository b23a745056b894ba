package chatty

import (
	"encoding/json"
	"sort"
)

type postRef struct {
	thread int
	post   int
}

// Chatty is a snapshot of every active thread. While a snapshot is being
// built its threads may be mutated through Post, once it is published it
// must be treated as read-only.
type Chatty struct {
	Threads []Thread

	// NukedThreadIDs and ExpiredThreadIDs classify threads that were
	// present in the previous snapshot but are missing from this one. They
	// only describe one cycle and are not serialized.
	NukedThreadIDs   []int64
	ExpiredThreadIDs []int64

	threadsByRoot map[int64]int
	threadsByPost map[int64]int
	posts         map[int64]postRef
}

// NewChatty builds a snapshot with its lookup indices.
func NewChatty(threads []Thread) *Chatty {
	c := &Chatty{Threads: threads}
	c.Reindex()
	return c
}

// Reindex rebuilds every lookup index, it must be called after threads or
// posts are added, removed or reordered. When a post id appears twice the
// first occurrence wins.
func (c *Chatty) Reindex() {
	c.threadsByRoot = make(map[int64]int, len(c.Threads))
	c.threadsByPost = make(map[int64]int, len(c.Threads)*16)
	c.posts = make(map[int64]postRef, len(c.Threads)*16)
	for ti, thread := range c.Threads {
		if _, ok := c.threadsByRoot[thread.ID]; !ok {
			c.threadsByRoot[thread.ID] = ti
		}
		for pi, post := range thread.Posts {
			if _, ok := c.posts[post.ID]; ok {
				continue
			}
			c.threadsByPost[post.ID] = ti
			c.posts[post.ID] = postRef{thread: ti, post: pi}
		}
	}
}

// Thread returns the thread with the given root id.
func (c *Chatty) Thread(rootID int64) (Thread, bool) {
	idx, ok := c.threadsByRoot[rootID]
	if !ok {
		return Thread{}, false
	}
	return c.Threads[idx], true
}

// ThreadOfPost returns the thread containing a post.
func (c *Chatty) ThreadOfPost(postID int64) (Thread, bool) {
	idx, ok := c.threadsByPost[postID]
	if !ok {
		return Thread{}, false
	}
	return c.Threads[idx], true
}

// Post returns a pointer into the snapshot for the given post id.
func (c *Chatty) Post(postID int64) (*Post, bool) {
	ref, ok := c.posts[postID]
	if !ok {
		return nil, false
	}
	return &c.Threads[ref.thread].Posts[ref.post], true
}

// PostCount is the number of distinct posts in the snapshot.
func (c *Chatty) PostCount() int {
	return len(c.posts)
}

// SortByActivity orders threads by their most recent post, newest first.
func (c *Chatty) SortByActivity() {
	sort.SliceStable(c.Threads, func(i, j int) bool {
		return c.Threads[i].MaxPostID() > c.Threads[j].MaxPostID()
	})
	c.Reindex()
}

type chattyJSON struct {
	Threads []Thread `json:"threads"`
}

func (c *Chatty) MarshalJSON() ([]byte, error) {
	return json.Marshal(chattyJSON{Threads: c.Threads})
}

func (c *Chatty) UnmarshalJSON(data []byte) error {
	var decoded chattyJSON
	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return err
	}
	c.Threads = decoded.Threads
	c.NukedThreadIDs = nil
	c.ExpiredThreadIDs = nil
	c.Reindex()
	return nil
}
