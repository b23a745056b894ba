package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"chattysync/internal/chatty"
	"chattysync/internal/scanner"
)

var progressRegex = regexp.MustCompile(`<div class="progress" style="width: [0-9]+(\.[0-9]+)?%">`)
var commentCountRegex = regexp.MustCompile(`<a href="/chatty">[0-9,]+ Comments</a>`)

// NormalizePage strips the parts of a listing page that change on every
// request without the threads changing.
func NormalizePage(markup string) string {
	markup = progressRegex.ReplaceAllString(markup, "")
	return commentCountRegex.ReplaceAllString(markup, "")
}

const (
	markerCommentsWrap   = `<div id="chatty_comments_wrap`
	markerPageNavigation = `<div class="pagenavigation">`
	markerSelectedPage   = `<a rel="nofollow" class="selected_page"`
	markerSettings       = `<div id="chatty_settings" class="">`
	markerChattyLink     = `<a href="/chatty">`
)

// ParsePage parses a normalized listing page.
func ParsePage(markup string) (chatty.Page, error) {
	s := scanner.New(markup)
	s.Seek(scanner.Primary, markerCommentsWrap)

	page := chatty.Page{CurrentPage: 1}
	if s.Peek(scanner.Primary, markerPageNavigation) != -1 {
		text := s.Clip([]string{markerPageNavigation, markerSelectedPage, ">"}, "</a>")
		if s.Err() != nil {
			return chatty.Page{}, s.Err()
		}
		current, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return chatty.Page{}, fmt.Errorf("current page: %w", err)
		}
		page.CurrentPage = current
	}

	countText := s.Clip([]string{markerSettings, markerChattyLink, ">"}, " Threads")
	if s.Err() != nil {
		return chatty.Page{}, s.Err()
	}
	threadCount, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(countText), ",", ""))
	if err != nil {
		return chatty.Page{}, fmt.Errorf("thread count: %w", err)
	}
	page.LastPage = max((threadCount+chatty.ThreadsPerPage-1)/chatty.ThreadsPerPage, 1)

	for s.Peek(scanner.Primary, markerFullPost) != -1 {
		thread, err := parseThreadTree(s, true)
		if errors.Is(err, ErrMissingThread) {
			break
		}
		if err != nil {
			return chatty.Page{}, err
		}
		page.Threads = append(page.Threads, thread)
		if len(page.Threads) > chatty.ThreadsPerPage {
			return chatty.Page{}, fmt.Errorf("too many threads on page %d", page.CurrentPage)
		}
	}

	return page, nil
}
