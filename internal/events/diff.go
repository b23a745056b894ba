// Package events derives change events by comparing consecutive snapshots.
package events

import (
	"cmp"
	"slices"
	"time"

	"chattysync/internal/chatty"
)

// Options selects which post differences raise a PostChange event.
type Options struct {
	PostChangeOnAuthor bool `json:"post_change_on_author"`
	PostChangeOnBody   bool `json:"post_change_on_body"`
}

func DefaultOptions() Options {
	return Options{PostChangeOnAuthor: true, PostChangeOnBody: true}
}

// Snapshot is one side of a comparison.
type Snapshot struct {
	Chatty    *chatty.Chatty
	LolCounts chatty.LolCounts
}

// differ accumulates events for a single comparison.
type differ struct {
	opts   Options
	prev   Snapshot
	next   Snapshot
	date   time.Time
	lastID int64
	out    []chatty.Event
}

// Diff returns the events that turn prev into next, numbered from
// lastEventID+1. prev.Chatty may be nil when there is no baseline. Threads
// listed in next.Chatty.NukedThreadIDs raise a nuke of their root, threads
// missing from next for any other reason raise nothing.
func Diff(prev, next Snapshot, lastEventID int64, now time.Time, opts Options) []chatty.Event {
	if prev.Chatty == nil {
		prev.Chatty = chatty.NewChatty(nil)
	}
	d := &differ{opts: opts, prev: prev, next: next, date: now, lastID: lastEventID}

	nuked := slices.Clone(next.Chatty.NukedThreadIDs)
	slices.Sort(nuked)
	for _, id := range nuked {
		if _, ok := prev.Chatty.Thread(id); ok {
			d.categoryChange(id, chatty.Nuked)
		}
	}

	var added, common []chatty.Thread
	for _, thread := range next.Chatty.Threads {
		if _, ok := prev.Chatty.Thread(thread.ID); ok {
			common = append(common, thread)
		} else {
			added = append(added, thread)
		}
	}
	byID := func(a, b chatty.Thread) int {
		return cmp.Compare(a.ID, b.ID)
	}
	slices.SortFunc(added, byID)
	slices.SortFunc(common, byID)

	for _, thread := range added {
		d.newThread(thread)
	}
	for _, thread := range common {
		old, _ := prev.Chatty.Thread(thread.ID)
		d.changedThread(old, thread)
	}
	return d.out
}

func (d *differ) emit(e chatty.Event) {
	d.lastID++
	e.ID = d.lastID
	e.Date = d.date
	d.out = append(d.out, e)
}

func (d *differ) categoryChange(postID int64, category chatty.Category) {
	d.emit(chatty.Event{
		Type:           chatty.EventCategoryChange,
		CategoryChange: &chatty.CategoryChangeEvent{PostID: postID, Category: category},
	})
}

// newPosts raises NewPost for the posts at the given indices in ascending
// post id order.
func (d *differ) newPosts(thread chatty.Thread, indices []int) {
	parents := thread.Parents()
	slices.SortFunc(indices, func(a, b int) int {
		return cmp.Compare(thread.Posts[a].ID, thread.Posts[b].ID)
	})

	for _, i := range indices {
		post := thread.Posts[i]
		var parentID int64
		var parentAuthor string
		if p := parents[i]; p >= 0 {
			parentID = thread.Posts[p].ID
			parentAuthor = thread.Posts[p].Author
		}
		d.emit(chatty.Event{
			Type: chatty.EventNewPost,
			NewPost: &chatty.NewPostEvent{
				PostID: post.ID,
				Post: chatty.EventPost{
					ID:       post.ID,
					ThreadID: thread.ID,
					ParentID: parentID,
					Author:   post.Author,
					Category: post.Category,
					Date:     post.Date,
					Body:     post.Body,
					Lols:     d.next.LolCounts.Post(thread.ID, post.ID).Sorted(),
				},
				ParentAuthor: parentAuthor,
			},
		})
	}
}

func (d *differ) newThread(thread chatty.Thread) {
	indices := make([]int, len(thread.Posts))
	for i := range indices {
		indices[i] = i
	}
	d.newPosts(thread, indices)
}

func (d *differ) changedThread(old, thread chatty.Thread) {
	oldIndex := make(map[int64]int, len(old.Posts))
	for i, p := range old.Posts {
		oldIndex[p.ID] = i
	}
	newIDs := make(map[int64]bool, len(thread.Posts))
	for _, p := range thread.Posts {
		newIDs[p.ID] = true
	}

	var removed []int64
	for _, p := range old.Posts {
		if !newIDs[p.ID] {
			removed = append(removed, p.ID)
		}
	}
	slices.Sort(removed)
	for _, id := range removed {
		d.categoryChange(id, chatty.Nuked)
	}

	var added []int
	for i, p := range thread.Posts {
		if _, ok := oldIndex[p.ID]; !ok {
			added = append(added, i)
		}
	}
	d.newPosts(thread, added)

	for _, post := range thread.Posts {
		i, ok := oldIndex[post.ID]
		if !ok {
			continue
		}
		d.changedPost(thread.ID, old.Posts[i], post)
	}
}

func (d *differ) changedPost(threadID int64, old, post chatty.Post) {
	if old.Category != post.Category {
		d.categoryChange(post.ID, post.Category)
	}

	oldLols := d.prev.LolCounts.Post(threadID, post.ID)
	lols := d.next.LolCounts.Post(threadID, post.ID)
	if !oldLols.Equal(lols) {
		// tags that dropped to zero are carried with a zero count
		var updates []chatty.LolCountUpdate
		for _, tag := range chatty.Tags {
			if lols[tag] > 0 || oldLols[tag] > 0 {
				updates = append(updates, chatty.LolCountUpdate{PostID: post.ID, Tag: tag, Count: lols[tag]})
			}
		}
		d.emit(chatty.Event{
			Type:            chatty.EventLolCountsUpdate,
			LolCountsUpdate: &chatty.LolCountsUpdateEvent{Updates: updates},
		})
	}

	authorChanged := d.opts.PostChangeOnAuthor && old.Author != post.Author
	bodyChanged := d.opts.PostChangeOnBody && old.HasBody && post.HasBody && old.Body != post.Body
	if authorChanged || bodyChanged {
		d.emit(chatty.Event{
			Type:       chatty.EventPostChange,
			PostChange: &chatty.PostChangeEvent{PostID: post.ID},
		})
	}

	if old.IsFrozen != post.IsFrozen {
		d.emit(chatty.Event{
			Type:             chatty.EventPostFreezeChange,
			PostFreezeChange: &chatty.PostFreezeChangeEvent{PostID: post.ID, Frozen: post.IsFrozen},
		})
	}
}
