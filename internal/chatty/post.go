package chatty

import "time"

type Post struct {
	ID       int64    `json:"id"`
	Depth    int      `json:"depth"`
	Category Category `json:"category"`
	Author   string   `json:"author"`
	AuthorID int64    `json:"authorId,omitempty"`
	Flair    Flair    `json:"flair"`

	// Body and Date are only meaningful when HasBody is set, replies
	// arrive from the listing without them.
	Body    string    `json:"body,omitempty"`
	Date    time.Time `json:"date"`
	HasBody bool      `json:"hasBody"`

	IsCortex bool `json:"isCortex,omitempty"`
	IsFrozen bool `json:"isFrozen,omitempty"`
}

func (p *Post) SetBody(body string, date time.Time) {
	p.Body = body
	p.Date = date
	p.HasBody = true
}
