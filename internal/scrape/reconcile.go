package scrape

import (
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/parser"
)

// mergePages flattens the threads of every page in page order. A thread
// seen on more than one page is replaced in place by its later occurrence.
// Threads are cloned so the cached pages are never mutated.
func mergePages(pages []chatty.CachedPage) []chatty.Thread {
	index := map[int64]int{}
	var threads []chatty.Thread
	for _, page := range pages {
		for _, thread := range page.Page.Threads {
			if i, ok := index[thread.ID]; ok {
				threads[i] = thread.Clone()
				continue
			}
			index[thread.ID] = len(threads)
			threads = append(threads, thread.Clone())
		}
	}
	return threads
}

// disappeared returns the threads of prev that are missing from threads.
func disappeared(prev *chatty.Chatty, threads []chatty.Thread) []chatty.Thread {
	present := make(map[int64]bool, len(threads))
	for _, t := range threads {
		present[t.ID] = true
	}
	var out []chatty.Thread
	for _, t := range prev.Threads {
		if !present[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

type disposition int

const (
	retained disposition = iota
	expired
	nuked
)

// classify decides what happens to a thread that fell out of the listing.
// A thread upstream no longer shows is nuked whatever its age, one that
// still exists is expired once its root is older than expiry.
func classify(thread chatty.Thread, now time.Time, expiry time.Duration, exists func() (bool, error)) (disposition, error) {
	ok, err := exists()
	if err != nil {
		return 0, err
	}
	if !ok {
		return nuked, nil
	}
	if now.Sub(thread.Root().Date) > expiry {
		return expired, nil
	}
	return retained, nil
}

// copyForward fills in what the listing does not carry from the previous
// snapshot and returns the ids of threads that still have posts without a
// body.
func copyForward(prev, next *chatty.Chatty) []int64 {
	var missing []int64
	for ti := range next.Threads {
		thread := &next.Threads[ti]
		incomplete := false
		for pi := range thread.Posts {
			post := &thread.Posts[pi]
			old, ok := prev.Post(post.ID)
			if ok {
				if !post.HasBody && old.HasBody {
					post.SetBody(old.Body, old.Date)
				}
				if post.AuthorID == 0 {
					post.AuthorID = old.AuthorID
				}
				post.Flair = old.Flair
			}
			if !post.HasBody {
				incomplete = true
			}
		}
		if incomplete {
			missing = append(missing, thread.ID)
		}
	}
	return missing
}

// applyBodies merges the bodies endpoint response into a thread. A root
// body the listing already carried is kept, so the root body always comes
// from the listing and never flips between the two renderings.
func applyBodies(thread *chatty.Thread, bodies map[int64]parser.PostBody) {
	for i := range thread.Posts {
		post := &thread.Posts[i]
		body, ok := bodies[post.ID]
		if !ok {
			continue
		}
		if i == 0 && post.HasBody {
			body.Body, body.Date = post.Body, post.Date
		}
		body.Apply(post)
	}
}

// pruneMissingBodies removes every post still lacking a body together with
// its replies. Threads whose root is removed are dropped. It returns the
// number of posts removed.
func pruneMissingBodies(c *chatty.Chatty) int {
	removed := 0
	threads := c.Threads[:0]
	for _, thread := range c.Threads {
		for i := 0; i < len(thread.Posts); {
			if thread.Posts[i].HasBody {
				i++
				continue
			}
			removed += thread.SubtreeEnd(i) - i
			thread.RemoveSubtree(i)
		}
		if len(thread.Posts) > 0 {
			threads = append(threads, thread)
		}
	}
	c.Threads = threads
	if removed > 0 {
		c.Reindex()
	}
	return removed
}

// finishPosts derives the flags and rewrites that depend on the final body.
func finishPosts(c *chatty.Chatty, baseUrl string) {
	for ti := range c.Threads {
		thread := &c.Threads[ti]
		for pi := range thread.Posts {
			post := &thread.Posts[pi]
			post.Body = parser.FixRelativeLinks(post.Body, baseUrl)
			post.IsCortex = pi == 0 && parser.IsCortex(post.Body)
		}
	}
}
