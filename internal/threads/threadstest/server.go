// Package threadstest serves a fake Threads Graph API for tests.
package threadstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// User is an account known to the fake API
type User struct {
	ID        string
	Username  string
	Token     string
	Followers int64
	Posts     []Post
}

// Post is a listed post with the insights returned for it
type Post struct {
	ID        string
	Text      string
	MediaType string
	Timestamp time.Time
	Views     int64
	Likes     int64
	Replies   int64
}

// SearchPost is a public post found by keyword search
type SearchPost struct {
	ID        string
	Username  string
	Text      string
	MediaType string
	TopicTag  string
	IsReply   bool
}

// Server is a fake Graph API backed by an in-memory user list
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string]*User
	hits        map[string]int
	searchable  []SearchPost
	searchError string
}

// NewServer starts a server closed at test cleanup
func NewServer(t *testing.T, users ...User) *Server {
	t.Helper()
	s := &Server{users: make(map[string]*User), hits: make(map[string]int)}
	for i := range users {
		u := users[i]
		s.users[u.Token] = &u
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// SetFollowers changes the follower count reported for token
func (s *Server) SetFollowers(token string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[token]; ok {
		u.Followers = n
	}
}

// AddSearchPosts makes posts findable by keyword search
func (s *Server) AddSearchPosts(posts ...SearchPost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchable = append(s.searchable, posts...)
}

// FailSearch makes keyword search answer with an error payload; "" restores it
func (s *Server) FailSearch(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchError = message
}

// Hits returns how many requests hit endpoints ending in suffix
func (s *Server) Hits(suffix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for path, c := range s.hits {
		if strings.HasSuffix(path, suffix) {
			n += c
		}
	}
	return n
}

type value struct {
	Value int64 `json:"value"`
}

type metric struct {
	Name   string  `json:"name"`
	Values []value `json:"values"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[r.URL.Path]++

	user, ok := s.users[r.URL.Query().Get("access_token")]
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case path == "me":
		writeJSON(w, map[string]string{
			"id":                          user.ID,
			"username":                    user.Username,
			"threads_profile_picture_url": "https://example.com/" + user.Username + ".jpg",
		})
	case path == "keyword_search":
		s.search(w, r)
	case path == user.ID+"/threads":
		data := make([]map[string]any, 0, len(user.Posts))
		for _, p := range user.Posts {
			mediaType := p.MediaType
			if mediaType == "" {
				mediaType = "TEXT_POST"
			}
			data = append(data, map[string]any{
				"id":         p.ID,
				"text":       p.Text,
				"media_type": mediaType,
				"timestamp":  p.Timestamp.UTC().Format("2006-01-02T15:04:05-0700"),
				"permalink":  "https://www.threads.net/@" + user.Username + "/post/" + p.ID,
			})
		}
		writeJSON(w, map[string]any{"data": data, "paging": map[string]any{}})
	case path == user.ID+"/threads_insights":
		switch r.URL.Query().Get("metric") {
		case "followers_count":
			writeJSON(w, map[string]any{"data": []metric{{Name: "followers_count", Values: []value{{user.Followers}}}}})
		case "clicks":
			writeJSON(w, map[string]any{"data": []metric{{Name: "clicks", Values: []value{{3}}}}})
		default:
			var views, likes int64
			for _, p := range user.Posts {
				views += p.Views
				likes += p.Likes
			}
			writeJSON(w, map[string]any{"data": []metric{
				{Name: "views", Values: []value{{views}}},
				{Name: "likes", Values: []value{{likes}}},
				{Name: "followers_count", Values: []value{{user.Followers}}},
			}})
		}
	case strings.HasSuffix(path, "/insights"):
		id := strings.TrimSuffix(path, "/insights")
		for _, p := range user.Posts {
			if p.ID == id {
				writeJSON(w, map[string]any{"data": []metric{
					{Name: "views", Values: []value{{p.Views}}},
					{Name: "likes", Values: []value{{p.Likes}}},
					{Name: "replies", Values: []value{{p.Replies}}},
				}})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"Unsupported get request"}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"Unknown path"}}`)
	}
}

// search matches q against text, or against the topic tag in TAG mode
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if s.searchError != "" {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, map[string]any{"error": map[string]string{"message": s.searchError}})
		return
	}
	query := r.URL.Query()
	q := strings.ToLower(query.Get("q"))
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}

	data := []map[string]any{}
	more := false
	for _, p := range s.searchable {
		field := p.Text
		if query.Get("search_mode") == "TAG" {
			field = p.TopicTag
		}
		if !strings.Contains(strings.ToLower(field), q) {
			continue
		}
		if author := query.Get("author_username"); author != "" && author != p.Username {
			continue
		}
		if len(data) == limit {
			more = true
			break
		}
		data = append(data, map[string]any{
			"id":         p.ID,
			"text":       p.Text,
			"username":   p.Username,
			"media_type": p.MediaType,
			"topic_tag":  p.TopicTag,
			"is_reply":   p.IsReply,
			"permalink":  "https://www.threads.net/@" + p.Username + "/post/" + p.ID,
			"timestamp":  "2025-03-01T12:00:00+0000",
		})
	}
	paging := map[string]any{}
	if more {
		paging["cursors"] = map[string]string{"after": "next"}
	}
	writeJSON(w, map[string]any{"data": data, "paging": paging})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
