package shacktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"chattysync/internal/chatty"
)

const (
	Username = "shared"
	Password = "hunter2"
)

// Server is a fake upstream. Threads listed on the chatty are paged 40 at
// a time, threads that are hidden still answer thread and body requests.
type Server struct {
	*httptest.Server

	mutex       sync.Mutex
	listed      []chatty.Thread
	hidden      map[int64]chatty.Thread
	contentType map[int64]int
	omitted     map[int64]bool
	lols        chatty.LolCounts
	session     int
	logins      int
	requests    map[string]int
	comments    int
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		hidden:      map[int64]chatty.Thread{},
		contentType: map[int64]int{},
		omitted:     map[int64]bool{},
		requests:    map[string]int{},
		comments:    1000,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/account/signin", s.handleSignin)
	mux.HandleFunc("/chatty", s.handleChatty)
	mux.HandleFunc("/frame_laryn.x", s.handleBodies)
	mux.HandleFunc("/api2/api-index.php", s.handleApi)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// SetListed replaces the threads shown on the chatty, newest first.
func (s *Server) SetListed(threads ...chatty.Thread) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.listed = threads
}

// Hide removes a thread from the chatty listing while it stays reachable by id.
func (s *Server) Hide(id int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for i, t := range s.listed {
		if t.ID == id {
			s.hidden[id] = t
			s.listed = append(s.listed[:i:i], s.listed[i+1:]...)
			return
		}
	}
}

// Delete removes a thread entirely, as if it was nuked.
func (s *Server) Delete(id int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.hidden, id)
	for i, t := range s.listed {
		if t.ID == id {
			s.listed = append(s.listed[:i:i], s.listed[i+1:]...)
			return
		}
	}
}

// SetContentType marks a thread as belonging to another content type.
func (s *Server) SetContentType(id int64, contentType int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.contentType[id] = contentType
}

// OmitBody leaves a post out of the bodies endpoint, like upstream does for
// replies that were posted a moment ago.
func (s *Server) OmitBody(postId int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.omitted[postId] = true
}

func (s *Server) SetLols(lols chatty.LolCounts) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lols = lols
}

// Requests is the number of requests served for a path.
func (s *Server) Requests(path string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.requests[path]
}

func (s *Server) Logins() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.logins
}

// ExpireSession makes the upstream forget the current login.
func (s *Server) ExpireSession() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.session = -1
}

// find looks a thread up by the id of any of its posts.
func (s *Server) find(id int64) (chatty.Thread, bool) {
	for _, t := range s.listed {
		if t.IndexOf(id) != -1 {
			return t, true
		}
	}
	for _, t := range s.hidden {
		if t.IndexOf(id) != -1 {
			return t, true
		}
	}
	return chatty.Thread{}, false
}

func (s *Server) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie("session")
	return err == nil && cookie.Value == strconv.Itoa(s.session)
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.requests[r.URL.Path]++

	err := r.ParseForm()
	if err != nil || r.Form.Get("user-identifier") != Username || r.Form.Get("supplied-pass") != Password {
		fmt.Fprint(w, `{"result":{"valid":"false"}}`)
		return
	}
	s.logins++
	s.session = s.logins
	http.SetCookie(w, &http.Cookie{Name: "session", Value: strconv.Itoa(s.session), Path: "/"})
	fmt.Fprint(w, `{"result":{"valid":"true"}}`)
}

func (s *Server) handleChatty(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.requests[r.URL.Path]++
	loggedIn := s.loggedIn(r)

	if idText := r.URL.Query().Get("id"); idText != "" {
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		contentType, ok := s.contentType[id]
		if !ok {
			contentType = 17
		}
		thread, ok := s.find(id)
		if !ok {
			fmt.Fprint(w, RenderThreadPage(nil, contentType, loggedIn))
			return
		}
		fmt.Fprint(w, RenderThreadPage(&thread, contentType, loggedIn))
		return
	}

	page := 1
	if pageText := r.URL.Query().Get("page"); pageText != "" {
		n, err := strconv.Atoi(pageText)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		page = n
	}
	start := min((page-1)*chatty.ThreadsPerPage, len(s.listed))
	end := min(start+chatty.ThreadsPerPage, len(s.listed))

	s.comments++
	fmt.Fprint(w, RenderPage(page, len(s.listed), s.listed[start:end], loggedIn, s.comments, float64(s.comments%100)))
}

func (s *Server) handleBodies(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.requests[r.URL.Path]++

	id, err := strconv.ParseInt(r.URL.Query().Get("root"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	thread, ok := s.find(id)
	if !ok {
		fmt.Fprint(w, `<div class="frame"></div>`)
		return
	}
	var posts []chatty.Post
	for _, p := range thread.Posts {
		if !s.omitted[p.ID] {
			posts = append(posts, p)
		}
	}
	thread.Posts = posts
	fmt.Fprint(w, RenderBodies(thread))
}

var tagNumbers = map[chatty.Tag]int{
	chatty.TagLol: 1, chatty.TagWtf: 2, chatty.TagUnf: 3, chatty.TagInf: 4,
	chatty.TagTag: 5, chatty.TagWow: 6, chatty.TagAww: 7,
}

func (s *Server) handleApi(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	action := r.URL.Query().Get("action2")
	s.requests[r.URL.Path+"?"+action]++

	switch action {
	case "ext_get_counts":
		out := map[string]map[string]map[string]string{}
		for threadId, posts := range s.lols.Threads {
			threadOut := map[string]map[string]string{}
			for postId, tags := range posts {
				tagOut := map[string]string{}
				for tag, n := range tags {
					tagOut[string(tag)] = strconv.Itoa(n)
				}
				threadOut[strconv.FormatInt(postId, 10)] = tagOut
			}
			out[strconv.FormatInt(threadId, 10)] = threadOut
		}
		json.NewEncoder(w).Encode(out)
	case "get_all_tags_for_posts":
		err := r.ParseForm()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type row struct {
			ThreadId string `json:"thread_id"`
			Tag      string `json:"tag"`
			Total    string `json:"total"`
		}
		rows := []row{}
		for _, idText := range r.Form["ids[]"] {
			id, err := strconv.ParseInt(idText, 10, 64)
			if err != nil {
				continue
			}
			for _, posts := range s.lols.Threads {
				for tag, n := range posts[id] {
					rows = append(rows, row{
						ThreadId: idText,
						Tag:      strconv.Itoa(tagNumbers[tag]),
						Total:    strconv.Itoa(n),
					})
				}
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "1", "data": rows})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
