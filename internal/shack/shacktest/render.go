// Package shacktest renders upstream markup from chatty models and serves
// it from an httptest server, so scraping can be exercised end to end.
package shacktest

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/components/chrono"
)

const LoggedInMarker = `<li style="display: none" id="user_posts">`

func FormatDate(t time.Time) string {
	return t.In(chrono.LA()).Format("Jan 02, 2006 3:04pm MST")
}

func classes(prefix string, p chatty.Post) string {
	out := []string{fmt.Sprintf("%smod_%s", prefix, p.Category)}
	if p.AuthorID != 0 {
		out = append(out, fmt.Sprintf("%sauthor_%d", prefix, p.AuthorID))
	}
	if p.IsFrozen {
		out = append(out, "frozen")
	}
	return strings.Join(out, " ")
}

func authorLink(name string) string {
	return fmt.Sprintf(
		`<span class="user"><a rel="nofollow" href="/user/%s/posts">%s</a></span>`,
		html.EscapeString(name), html.EscapeString(name),
	)
}

func RenderOneline(p chatty.Post) string {
	return fmt.Sprintf(
		`<div class="oneline oneline0 %s"><a class="shackmsg" rel="nofollow" href="?id=%d" onclick="return clickItem(%d);"><span class="oneline_body">%s</span></a> : <span class="oneline_user ">%s</span></div>`,
		classes("ol", p), p.ID, p.ID, html.EscapeString(preview(p.Body)), html.EscapeString(p.Author),
	)
}

func preview(body string) string {
	if len(body) > 40 {
		return body[:40]
	}
	return body
}

// RenderThread renders a root post followed by its reply tree.
func RenderThread(t chatty.Thread) string {
	root := t.Root()
	var out strings.Builder
	fmt.Fprintf(&out, `<div class="root" id="root_%d">`, t.ID)
	fmt.Fprintf(
		&out,
		`<div class="fullpost op %s"><span class="author">%s</span><div class="postbody">%s</div><div class="postdate">%s</div></div>`,
		classes("fp", root), authorLink(root.Author), root.Body, FormatDate(root.Date),
	)
	out.WriteString(RenderOneline(root))

	depth := 0
	for _, p := range t.Posts[1:] {
		if p.Depth > depth {
			for d := depth; d < p.Depth; d++ {
				out.WriteString("<ul>")
			}
		} else {
			out.WriteString("</li>")
			for d := depth; d > p.Depth; d-- {
				out.WriteString("</ul></li>")
			}
		}
		out.WriteString(`<li class="">`)
		out.WriteString(RenderOneline(p))
		depth = p.Depth
	}
	for d := depth; d > 0; d-- {
		out.WriteString("</li></ul>")
	}

	out.WriteString("</div>")
	return out.String()
}

func withCommas(n int) string {
	text := strconv.Itoa(n)
	var out []string
	for len(text) > 3 {
		out = append([]string{text[len(text)-3:]}, out...)
		text = text[:len(text)-3]
	}
	return strings.Join(append([]string{text}, out...), ",")
}

// RenderPage renders a listing page. commentCount and progress change on
// every request upstream without the threads changing.
func RenderPage(current, threadCount int, threads []chatty.Thread, loggedIn bool, commentCount int, progress float64) string {
	var out strings.Builder
	out.WriteString("<html><head><title>Chatty</title></head><body>")
	if loggedIn {
		out.WriteString(LoggedInMarker + "posts</li>")
	}
	out.WriteString(`<div id="chatty_comments_wrap">`)
	out.WriteString(`<div class="pagenavigation">`)
	if current > 1 {
		out.WriteString(`<a rel="nofollow" href="/chatty?page=1">1</a>`)
	}
	fmt.Fprintf(&out, `<a rel="nofollow" class="selected_page" href="/chatty?page=%d">%d</a></div>`, current, current)
	fmt.Fprintf(
		&out,
		`<div id="chatty_settings" class=""><a href="/chatty">%s Comments</a> <a href="/chatty">%s Threads</a></div>`,
		withCommas(commentCount), withCommas(threadCount),
	)
	fmt.Fprintf(&out, `<div class="progress" style="width: %.1f%%"></div>`, progress)
	out.WriteString(`<div class="threads">`)
	for _, t := range threads {
		out.WriteString(RenderThread(t))
	}
	out.WriteString("</div></div></body></html>")
	return out.String()
}

// RenderThreadPage renders the page of a single thread, a nil thread
// renders the page shown for an id that is not a thread. A zero content type
// leaves out the content type input.
func RenderThreadPage(t *chatty.Thread, contentType int, loggedIn bool) string {
	var out strings.Builder
	out.WriteString("<html><body>")
	if loggedIn {
		out.WriteString(LoggedInMarker + "posts</li>")
	}
	if contentType != 0 {
		fmt.Fprintf(&out, `<input type="hidden" name="content_type_id" id="content_type_id" value="%d">`, contentType)
	}
	out.WriteString(`<div class="threads">`)
	if t != nil {
		out.WriteString(RenderThread(*t))
	}
	out.WriteString("</div></body></html>")
	return out.String()
}

func renderFlair(f chatty.Flair) string {
	var out strings.Builder
	if f.IsTenYear {
		out.WriteString(`<span class="icon tenyear"></span>`)
	}
	if f.IsTwentyYear {
		out.WriteString(`<span class="icon twentyyear"></span>`)
	}
	if f.IsModerator {
		out.WriteString(`<span class="icon moderator"></span>`)
	}
	switch f.Mercury {
	case chatty.MercuryBasic:
		out.WriteString(`<span class="icon mercury"></span>`)
	case chatty.MercurySuper:
		out.WriteString(`<span class="icon mercury-super"></span>`)
	}
	return out.String()
}

// RenderBodies renders the bodies endpoint for every post of a thread.
func RenderBodies(t chatty.Thread) string {
	var out strings.Builder
	out.WriteString(`<div class="frame">`)
	for _, p := range t.Posts {
		fmt.Fprintf(
			&out,
			`<div id="item_%d"><div class="fullpost %s"><span class="author">%s%s</span><div class="postbody">%s</div><div class="postdate">%s</div></div></div>`,
			p.ID, classes("fp", p), authorLink(p.Author), renderFlair(p.Flair), p.Body, FormatDate(p.Date),
		)
	}
	out.WriteString("</div>")
	return out.String()
}
