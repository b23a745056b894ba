package chatty

import "time"

type EventType string

const (
	EventNewPost          EventType = "newPost"
	EventCategoryChange   EventType = "categoryChange"
	EventLolCountsUpdate  EventType = "lolCountsUpdate"
	EventPostChange       EventType = "postChange"
	EventPostFreezeChange EventType = "postFreezeChange"
	EventReadStatusUpdate EventType = "readStatusUpdate"
)

// Event is a single change notification. Exactly one payload field is set,
// the one matching Type.
type Event struct {
	ID   int64     `json:"eventId"`
	Date time.Time `json:"eventDate"`
	Type EventType `json:"eventType"`

	NewPost          *NewPostEvent          `json:"newPost,omitempty"`
	CategoryChange   *CategoryChangeEvent   `json:"categoryChange,omitempty"`
	LolCountsUpdate  *LolCountsUpdateEvent  `json:"lolCountsUpdate,omitempty"`
	PostChange       *PostChangeEvent       `json:"postChange,omitempty"`
	PostFreezeChange *PostFreezeChangeEvent `json:"postFreezeChange,omitempty"`
	ReadStatusUpdate *ReadStatusUpdateEvent `json:"readStatusUpdate,omitempty"`
}

// EventPost is the view of a post carried by a NewPost event.
type EventPost struct {
	ID       int64      `json:"id"`
	ThreadID int64      `json:"threadId"`
	ParentID int64      `json:"parentId"`
	Author   string     `json:"author"`
	Category Category   `json:"category"`
	Date     time.Time  `json:"date"`
	Body     string     `json:"body"`
	Lols     []LolCount `json:"lols,omitempty"`
}

type NewPostEvent struct {
	PostID       int64     `json:"postId"`
	Post         EventPost `json:"post"`
	ParentAuthor string    `json:"parentAuthor"`
}

type CategoryChangeEvent struct {
	PostID   int64    `json:"postId"`
	Category Category `json:"category"`
}

type LolCountUpdate struct {
	PostID int64 `json:"postId"`
	Tag    Tag   `json:"tag"`
	Count  int   `json:"count"`
}

type LolCountsUpdateEvent struct {
	Updates []LolCountUpdate `json:"updates"`
}

type PostChangeEvent struct {
	PostID int64 `json:"postId"`
}

type PostFreezeChangeEvent struct {
	PostID int64 `json:"postId"`
	Frozen bool  `json:"frozen"`
}

type ReadStatusUpdateEvent struct {
	Username string `json:"username"`
}
