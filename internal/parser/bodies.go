package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/scanner"
)

// PostBody holds the fields only the bodies endpoint carries.
type PostBody struct {
	ID       int64
	Category chatty.Category
	Author   string
	AuthorID int64
	Flair    chatty.Flair
	Body     string
	Date     time.Time
	IsFrozen bool
}

// Apply copies the body endpoint fields onto a post.
func (b PostBody) Apply(post *chatty.Post) {
	post.SetBody(b.Body, b.Date)
	if b.AuthorID != 0 {
		post.AuthorID = b.AuthorID
	}
	post.Flair = b.Flair
	post.IsFrozen = b.IsFrozen
}

const (
	markerItem       = `<div id="item_`
	markerFullPost   = `<div class="fullpost`
	markerAuthorSpan = `<span class="author">`
	markerUserSpan   = `<span class="user">`
	markerUserLink   = `<a rel="nofollow" href="/user/`
)

var flairMarkers = []struct {
	marker string
	apply  func(*chatty.Flair)
}{
	{`<span class="icon tenyear">`, func(f *chatty.Flair) { f.IsTenYear = true }},
	{`<span class="icon twentyyear">`, func(f *chatty.Flair) { f.IsTwentyYear = true }},
	{`<span class="icon moderator">`, func(f *chatty.Flair) { f.IsModerator = true }},
	{`<span class="icon mercury">`, func(f *chatty.Flair) { f.Mercury = chatty.MercuryBasic }},
	{`<span class="icon mercury-super">`, func(f *chatty.Flair) { f.Mercury = chatty.MercurySuper }},
}

// ParseThreadBodies parses the bodies endpoint of a thread, keyed by post id.
func ParseThreadBodies(markup string) (map[int64]PostBody, error) {
	s := scanner.New(markup)
	bodies := map[int64]PostBody{}

	for s.Peek(scanner.Primary, markerItem) != -1 {
		idText := s.Clip([]string{markerItem, "_"}, `">`)
		classText := s.Clip([]string{markerFullPost, "class=", `"`}, `"`)
		author := s.Clip([]string{markerAuthorSpan, markerUserSpan, markerUserLink, ">"}, "</a>")

		var flair chatty.Flair
		bodyStart := s.Peek(scanner.Primary, markerPostBody)
		for _, f := range flairMarkers {
			idx := s.Peek(scanner.Primary, f.marker)
			if idx != -1 && idx < bodyStart {
				f.apply(&flair)
			}
		}

		body := parseRootBody(s)
		dateText := parseRootDate(s)
		if s.Err() != nil {
			return nil, s.Err()
		}

		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("post id: %w", err)
		}
		classes, err := parseClasses(classText, "fp")
		if err != nil {
			return nil, fmt.Errorf("post %d classes: %w", id, err)
		}
		category, err := chatty.ParseCategory(classes.category)
		if err != nil {
			return nil, err
		}
		date, err := ParseDate(dateText)
		if err != nil {
			return nil, fmt.Errorf("post %d: %w", id, err)
		}

		if _, seen := bodies[id]; seen {
			continue
		}
		bodies[id] = PostBody{
			ID:       id,
			Category: category,
			Author:   strings.TrimSpace(DecodeExceptLtGt(author)),
			AuthorID: classes.authorId,
			Flair:    flair,
			Body:     body,
			Date:     date,
			IsFrozen: classes.frozen,
		}
	}

	return bodies, nil
}
