package parser

import (
	"fmt"
	"strings"
	"time"

	"chattysync/internal/components/chrono"
)

var pacificZones = map[string]*time.Location{
	"PDT": time.FixedZone("PDT", -7*60*60),
	"PST": time.FixedZone("PST", -8*60*60),
}

var pacificLayouts = []string{
	"January 2, 2006, 3:04 PM",
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
}

var zonedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// ParseDate parses the date formats used across the site. The result is
// always expressed in America/Los_Angeles.
func ParseDate(text string) (time.Time, error) {
	text = strings.TrimSpace(StripTags(text))

	// "Aug 09, 2020 9:33am PDT"
	if idx := strings.LastIndexByte(text, ' '); idx != -1 {
		if zone, ok := pacificZones[text[idx+1:]]; ok {
			parsed, err := time.ParseInLocation("Jan 2, 2006 3:04pm", strings.ToLower(text[:idx]), zone)
			if err == nil {
				return parsed.In(chrono.LA()), nil
			}
		}
	}

	for _, layout := range pacificLayouts {
		parsed, err := time.ParseInLocation(layout, text, chrono.LA())
		if err == nil {
			return parsed, nil
		}
	}
	for _, layout := range zonedLayouts {
		parsed, err := time.Parse(layout, text)
		if err == nil {
			return parsed.In(chrono.LA()), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date '%s'", text)
}
