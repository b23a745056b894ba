package chatty

// Thread is a root post with its replies in depth-first order. Posts[0]
// is always the root, at depth 0.
type Thread struct {
	ID    int64  `json:"id"`
	Posts []Post `json:"posts"`
}

func (t Thread) Root() Post {
	return t.Posts[0]
}

// Clone returns a copy whose posts can be mutated without touching t.
func (t Thread) Clone() Thread {
	posts := make([]Post, len(t.Posts))
	copy(posts, t.Posts)
	return Thread{ID: t.ID, Posts: posts}
}

// MaxPostID is the highest post id in the thread, which tracks the most
// recent activity.
func (t Thread) MaxPostID() int64 {
	max := t.ID
	for _, p := range t.Posts {
		if p.ID > max {
			max = p.ID
		}
	}
	return max
}

// Parents returns the index of each post's parent, -1 for the root. The
// parent of a post at depth d is the nearest preceding post at depth d-1.
func (t Thread) Parents() []int {
	parents := make([]int, len(t.Posts))
	// stack[d] is the index of the last seen post at depth d
	stack := make([]int, 0, 8)
	for i, p := range t.Posts {
		depth := p.Depth
		if depth > len(stack) {
			depth = len(stack)
		}
		stack = append(stack[:depth], i)
		if depth == 0 {
			parents[i] = -1
			continue
		}
		parents[i] = stack[depth-1]
	}
	return parents
}

// IndexOf returns the index of a post within the thread, or -1.
func (t Thread) IndexOf(postID int64) int {
	for i, p := range t.Posts {
		if p.ID == postID {
			return i
		}
	}
	return -1
}

// SubtreeEnd is the exclusive end index of the subtree rooted at index i.
func (t Thread) SubtreeEnd(i int) int {
	end := i + 1
	for end < len(t.Posts) && t.Posts[end].Depth > t.Posts[i].Depth {
		end++
	}
	return end
}

// RemoveSubtree drops the post at index i along with all of its descendants.
func (t *Thread) RemoveSubtree(i int) {
	end := t.SubtreeEnd(i)
	t.Posts = append(t.Posts[:i:i], t.Posts[end:]...)
}
