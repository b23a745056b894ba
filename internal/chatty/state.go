package chatty

// ThreadsPerPage is the number of threads the listing shows per page.
const ThreadsPerPage = 40

// Page is one parsed listing page.
type Page struct {
	CurrentPage int      `json:"currentPage"`
	LastPage    int      `json:"lastPage"`
	Threads     []Thread `json:"threads"`
}

// CachedPage pairs a listing page with the normalized markup it was parsed
// from, so an unchanged page can skip parsing.
type CachedPage struct {
	HTML string `json:"html"`
	Page Page   `json:"page"`
}

// ScrapeState is everything needed to resume scraping after a restart.
type ScrapeState struct {
	Chatty    *Chatty      `json:"chatty"`
	Pages     []CachedPage `json:"pages"`
	LolJSON   string       `json:"lolJson"`
	LolCounts LolCounts    `json:"lolCounts"`
	Events    []Event      `json:"events"`
}

// LastEventID is the id of the most recent event, 0 if there are none.
func (s ScrapeState) LastEventID() int64 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].ID
}
