package parser

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var ltGtEscaper = strings.NewReplacer("&lt;", "&amp;lt;", "&gt;", "&amp;gt;")

// DecodeExceptLtGt decodes every html entity except &lt; and &gt;, so
// decoded text can still be embedded as markup.
func DecodeExceptLtGt(text string) string {
	return html.UnescapeString(ltGtEscaper.Replace(text))
}

// MakeSpoilersClickable rewrites the spoiler reveal handler into one that
// works without the upstream scripts.
func MakeSpoilersClickable(body string) string {
	return strings.ReplaceAll(body, "return doSpoiler(event);", "this.className = '';")
}

const spoilerMask = "_______"

// RemoveSpoilers replaces the contents of every spoiler with a mask,
// nested spans inside a spoiler are tracked by depth so the mask ends at
// the matching close tag.
func RemoveSpoilers(text string) string {
	chunks := strings.Split(text, "<")
	var out strings.Builder
	out.WriteString(chunks[0])

	depth := 0
	for _, chunk := range chunks[1:] {
		if depth == 0 {
			if strings.HasPrefix(chunk, `span class="jt_spoiler"`) {
				depth = 1
				tagEnd := strings.Index(chunk, ">")
				if tagEnd == -1 {
					tagEnd = len(chunk) - 1
				}
				out.WriteString("<")
				out.WriteString(chunk[:tagEnd+1])
				out.WriteString(spoilerMask)
				continue
			}
			out.WriteString("<")
			out.WriteString(chunk)
			continue
		}

		switch {
		case strings.HasPrefix(chunk, "span ") || strings.HasPrefix(chunk, "span>"):
			depth++
		case strings.HasPrefix(chunk, "/span>"):
			depth--
			if depth == 0 {
				out.WriteString("<")
				out.WriteString(chunk)
			}
		}
	}
	return out.String()
}

var tagRegex = regexp.MustCompile(`<[^>]*(>|$)`)

func StripTags(text string) string {
	return tagRegex.ReplaceAllString(text, "")
}

var breakRegex = regexp.MustCompile(`(?i)<br\s*/?>`)

// PreviewFromBody turns a post body into a single line of plain text with
// spoilers masked.
func PreviewFromBody(body string) string {
	text := RemoveSpoilers(body)
	text = breakRegex.ReplaceAllString(text, " ")
	text = StripTags(text)
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// FixRelativeLinks makes site-relative anchors absolute against baseUrl.
func FixRelativeLinks(body, baseUrl string) string {
	baseUrl = strings.TrimSuffix(baseUrl, "/") + "/"
	return strings.NewReplacer(
		`<a href="/`, `<a href="`+baseUrl,
		`<a target="_blank" href="/`, `<a target="_blank" href="`+baseUrl,
	).Replace(body)
}

var cortexRegex = regexp.MustCompile(`Read more: <a href="[^"]*/cortex/article/[^"]+"[^>]*>[^h][^t][^t][^p]`)

// IsCortex reports whether a root body is the stub generated for a long
// form article.
func IsCortex(body string) bool {
	return cortexRegex.MatchString(body)
}
