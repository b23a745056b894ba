package shacktest

import (
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/components/chrono"
)

// Date returns a minute precision Pacific time, which is all the markup
// can represent.
func Date(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, chrono.LA())
}

// Post builds an on-topic post with a loaded body.
func Post(id int64, depth int, author, body string, date time.Time) chatty.Post {
	p := chatty.Post{
		ID:       id,
		Depth:    depth,
		Category: chatty.OnTopic,
		Author:   author,
	}
	p.SetBody(body, date)
	return p
}

// Thread builds a thread out of posts, the first post is the root.
func Thread(posts ...chatty.Post) chatty.Thread {
	return chatty.Thread{ID: posts[0].ID, Posts: posts}
}
