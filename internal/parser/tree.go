package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chattysync/internal/chatty"
	"chattysync/internal/scanner"
)

// ErrMissingThread is returned when markup does not describe a thread that
// belongs to the chatty: it has no body, it is a placeholder for a future
// post, or it belongs to another content type.
var ErrMissingThread = errors.New("missing thread")

const (
	markerPostBody    = `<div class="postbody">`
	markerPostDate    = `<div class="postdate">`
	markerRootPost    = `<div class="fullpost op`
	markerOneline     = `<div class="oneline`
	markerPostId      = `<a class="shackmsg" rel="nofollow" href="?id=`
	markerOnelineUser = `<span class="oneline_user`
	markerListItem    = "<li "
	markerListOpen    = "<ul>"
	markerListClose   = "</ul>"
)

// postClasses is what can be read from the class attribute of a post.
type postClasses struct {
	category string
	authorId int64
	frozen   bool
}

// parseClasses reads "<prefix>mod_<category>", "<prefix>author_<id>" and
// "frozen" out of a class list.
func parseClasses(classes, prefix string) (postClasses, error) {
	var out postClasses
	for _, class := range strings.Fields(classes) {
		switch {
		case strings.HasPrefix(class, prefix+"mod_"):
			out.category = strings.TrimPrefix(class, prefix+"mod_")
		case strings.HasPrefix(class, prefix+"author_"):
			id, err := strconv.ParseInt(strings.TrimPrefix(class, prefix+"author_"), 10, 64)
			if err != nil {
				return postClasses{}, fmt.Errorf("author id: %w", err)
			}
			out.authorId = id
		case class == "frozen":
			out.frozen = true
		}
	}
	if out.category == "" {
		return postClasses{}, fmt.Errorf("no category in '%s'", classes)
	}
	return out, nil
}

func parseRootBody(s *scanner.Scanner) string {
	body := s.Clip([]string{markerPostBody, ">"}, "</div>")
	return strings.TrimSpace(DecodeExceptLtGt(MakeSpoilersClickable(body)))
}

func parseRootDate(s *scanner.Scanner) string {
	// dates end in the zone abbreviation, "PDT" or "PST"
	return s.Clip([]string{markerPostDate, ">"}, "T</div") + "T"
}

// parseThreadTree reads a thread starting at the primary cursor. With
// stopAtNextRoot the thread ends where the next root post begins,
// otherwise it runs to the end of the input.
func parseThreadTree(s *scanner.Scanner, stopAtNextRoot bool) (chatty.Thread, error) {
	if s.Peek(scanner.Primary, markerPostBody) == -1 {
		return chatty.Thread{}, fmt.Errorf("%w: no post body", ErrMissingThread)
	}

	rootBody := parseRootBody(s)
	rootDateText := parseRootDate(s)
	if s.Err() != nil {
		return chatty.Thread{}, s.Err()
	}
	rootDate, err := ParseDate(rootDateText)
	if err != nil {
		return chatty.Thread{}, err
	}

	nextThread := s.Peek(scanner.Primary, markerRootPost)
	if nextThread == -1 || !stopAtNextRoot {
		nextThread = s.Len()
	}

	var thread chatty.Thread
	depth := 0
	for {
		next := s.Peek(scanner.Primary, markerOneline)
		if next == -1 || next > nextThread {
			break
		}

		classText := s.Clip([]string{markerOneline, `class=`, `"`}, `"`)
		idText := s.Clip([]string{markerPostId, "id=", "="}, `"`)
		author := s.Clip([]string{markerOnelineUser, ">"}, "</span>")
		if s.Err() != nil {
			return chatty.Thread{}, s.Err()
		}

		classes, err := parseClasses(classText, "ol")
		if err != nil {
			return chatty.Thread{}, fmt.Errorf("post classes: %w", err)
		}
		category, err := chatty.ParseCategory(classes.category)
		if err != nil {
			return chatty.Thread{}, err
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return chatty.Thread{}, fmt.Errorf("post id: %w", err)
		}

		post := chatty.Post{
			ID:       id,
			Depth:    depth,
			Category: category,
			Author:   strings.TrimSpace(DecodeExceptLtGt(author)),
			AuthorID: classes.authorId,
			IsFrozen: classes.frozen,
		}
		if len(thread.Posts) == 0 {
			post.Depth = 0
			post.SetBody(rootBody, rootDate)
			thread.ID = id
		}
		thread.Posts = append(thread.Posts, post)

		depth = walkNesting(s, depth, nextThread)
		if s.Err() != nil {
			return chatty.Thread{}, s.Err()
		}
	}

	if len(thread.Posts) == 0 {
		return chatty.Thread{}, &scanner.ParseError{Marker: markerOneline, Offset: s.Cursor(scanner.Primary)}
	}
	return thread, nil
}

// walkNesting consumes list open and close markers up to the next list
// item and returns the depth the next post sits at.
func walkNesting(s *scanner.Scanner, depth, limit int) int {
	at := func(marker string) int {
		idx := s.Peek(scanner.Primary, marker)
		if idx == -1 || idx > limit {
			return limit
		}
		return idx
	}

	for {
		item := at(markerListItem)
		open := at(markerListOpen)
		closing := at(markerListClose)

		next := min(item, open, closing)
		if next == limit || next == item {
			return depth
		}
		if next == open {
			depth++
		} else if depth > 0 {
			depth--
		}
		s.Jump(scanner.Primary, next+1)
	}
}

const (
	markerDocumentEnd  = "</html>"
	markerFuturePost   = `<p class="be_first_to_comment">`
	markerContentType  = `id="content_type_id"`
	markerThreadsStart = `<div class="threads">`
)

// ParseThreadPage parses the page that shows a single thread.
func ParseThreadPage(markup string) (chatty.Thread, error) {
	if !strings.Contains(markup, markerDocumentEnd) {
		return chatty.Thread{}, &scanner.ParseError{Marker: markerDocumentEnd, Offset: len(markup)}
	}
	if strings.Contains(markup, markerFuturePost) {
		return chatty.Thread{}, fmt.Errorf("%w: future post", ErrMissingThread)
	}

	s := scanner.New(markup)
	err := checkContentType(s)
	if err != nil {
		return chatty.Thread{}, err
	}
	s.Seek(scanner.Primary, markerThreadsStart)
	if s.Err() != nil {
		return chatty.Thread{}, s.Err()
	}
	return parseThreadTree(s, false)
}

// the chatty and its archive pages use these content types, anything else
// is an article comment section
var chattyContentTypes = map[string]bool{"2": true, "17": true}

// checkContentType rejects pages whose content type input names something
// other than the chatty. Pages without the input are accepted.
func checkContentType(s *scanner.Scanner) error {
	if s.Peek(scanner.Primary, markerContentType) == -1 {
		return nil
	}
	contentType := s.Clip([]string{markerContentType, "value=", `"`}, `"`)
	if s.Err() != nil {
		return s.Err()
	}
	if !chattyContentTypes[contentType] {
		return fmt.Errorf("%w: content type %s is not in the main chatty", ErrMissingThread, contentType)
	}
	return nil
}
