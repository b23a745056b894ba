package chatty

import "fmt"

// Tag is a reaction tag.
type Tag string

const (
	TagLol Tag = "lol"
	TagInf Tag = "inf"
	TagUnf Tag = "unf"
	TagTag Tag = "tag"
	TagWtf Tag = "wtf"
	TagWow Tag = "wow"
	TagAww Tag = "aww"
)

// Tags is the display order of reaction tags.
var Tags = []Tag{TagLol, TagInf, TagUnf, TagTag, TagWtf, TagWow, TagAww}

// TagFromNumber maps the numeric tag ids used by the per-thread tag api.
func TagFromNumber(n int) (Tag, error) {
	switch n {
	case 1:
		return TagLol, nil
	case 2:
		return TagWtf, nil
	case 3:
		return TagUnf, nil
	case 4:
		return TagInf, nil
	case 5:
		return TagTag, nil
	case 6:
		return TagWow, nil
	case 7:
		return TagAww, nil
	}
	return "", fmt.Errorf("unknown tag number %d", n)
}

// PostLols maps tag to count for a single post.
type PostLols map[Tag]int

// Equal reports whether both posts carry the same non-zero counts.
func (p PostLols) Equal(other PostLols) bool {
	count := 0
	for tag, n := range p {
		if n == 0 {
			continue
		}
		if other[tag] != n {
			return false
		}
		count++
	}
	otherCount := 0
	for _, n := range other {
		if n != 0 {
			otherCount++
		}
	}
	return count == otherCount
}

// LolCount is a single (tag, count) pair.
type LolCount struct {
	Tag   Tag `json:"tag"`
	Count int `json:"count"`
}

// Sorted returns the non-zero counts in display order.
func (p PostLols) Sorted() []LolCount {
	var out []LolCount
	for _, tag := range Tags {
		if n := p[tag]; n > 0 {
			out = append(out, LolCount{Tag: tag, Count: n})
		}
	}
	return out
}

// ThreadLols maps post id to the counts of that post.
type ThreadLols map[int64]PostLols

// LolCounts holds reaction counts for the whole chatty, keyed by thread id.
type LolCounts struct {
	Threads map[int64]ThreadLols `json:"threads"`
}

// Thread returns the counts of a thread, never nil.
func (l LolCounts) Thread(threadID int64) ThreadLols {
	if counts, ok := l.Threads[threadID]; ok {
		return counts
	}
	return ThreadLols{}
}

// Post returns the counts of a post, never nil.
func (l LolCounts) Post(threadID, postID int64) PostLols {
	if counts, ok := l.Thread(threadID)[postID]; ok {
		return counts
	}
	return PostLols{}
}
