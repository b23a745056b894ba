package chatty

import "fmt"

// Category is the moderation category of a post.
type Category string

const (
	OnTopic     Category = "ontopic"
	Nws         Category = "nws"
	Stupid      Category = "stupid"
	Political   Category = "political"
	Tangent     Category = "tangent"
	Informative Category = "informative"
	Nuked       Category = "nuked"
)

// ParseCategory maps the category name used in upstream class names.
func ParseCategory(name string) (Category, error) {
	switch name {
	case "ontopic":
		return OnTopic, nil
	case "nws":
		return Nws, nil
	case "stupid":
		return Stupid, nil
	case "political":
		return Political, nil
	case "tangent", "offtopic":
		return Tangent, nil
	case "informative":
		return Informative, nil
	case "nuked":
		return Nuked, nil
	}
	return "", fmt.Errorf("unknown category '%s'", name)
}

// MercuryStatus is the subscription tier shown next to an author.
type MercuryStatus string

const (
	MercuryNone  MercuryStatus = ""
	MercuryBasic MercuryStatus = "mercury"
	MercurySuper MercuryStatus = "super"
)

// Flair is the set of badges next to an author.
type Flair struct {
	IsTenYear    bool          `json:"isTenYear,omitempty"`
	IsTwentyYear bool          `json:"isTwentyYear,omitempty"`
	IsModerator  bool          `json:"isModerator,omitempty"`
	Mercury      MercuryStatus `json:"mercury,omitempty"`
}
