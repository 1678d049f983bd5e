package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/PoluyanbIch/DocxQuizBot/internal/logger"
)

func entry(userID int64, correct, total int, score float64) LeaderboardEntry {
	return LeaderboardEntry{UserID: userID, Correct: correct, Total: total, Score: score}
}

func TestNewLeaderboardEntry(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC)
	e := NewLeaderboardEntry(7, "nam", "Nam", "set-1", "de.docx", Report{Correct: 3, Total: 4, Score: 7.5}, at)

	if e.UserID != 7 || e.QuizID != "set-1" || e.FileName != "de.docx" {
		t.Errorf("unexpected identity fields: %+v", e)
	}
	if e.Correct != 3 || e.Total != 4 || e.Score != 7.5 {
		t.Errorf("unexpected result fields: %+v", e)
	}
	if e.Date != "04.03.2026 05:06" {
		t.Errorf("unexpected date: %s", e.Date)
	}
}

func TestMemoryLeaderboard_BestResultPerUser(t *testing.T) {
	ctx := context.Background()
	lb := NewMemoryLeaderboardService()

	testCases := []struct {
		name   string
		entry  LeaderboardEntry
		stored bool
	}{
		{"first result", entry(1, 2, 4, 5.0), true},
		{"worse result", entry(1, 1, 4, 2.5), false},
		{"same score fewer correct", entry(1, 1, 2, 5.0), false},
		{"same score more correct", entry(1, 4, 8, 5.0), true},
		{"better result", entry(1, 4, 4, 10.0), true},
	}

	for _, tc := range testCases {
		if got := lb.AddEntry(ctx, tc.entry); got != tc.stored {
			t.Errorf("%s: AddEntry() = %v, want %v", tc.name, got, tc.stored)
		}
	}

	top := lb.GetTop(ctx, 10)
	if len(top) != 1 || top[0].Score != 10.0 {
		t.Fatalf("expected single best entry, got %+v", top)
	}
}

func TestMemoryLeaderboard_TopAndPosition(t *testing.T) {
	ctx := context.Background()
	lb := NewMemoryLeaderboardService()
	lb.AddEntry(ctx, entry(1, 5, 10, 5.0))
	lb.AddEntry(ctx, entry(2, 9, 10, 9.0))
	lb.AddEntry(ctx, entry(3, 7, 10, 7.0))

	top := lb.GetTop(ctx, 2)
	if len(top) != 2 || top[0].UserID != 2 || top[1].UserID != 3 {
		t.Fatalf("unexpected top: %+v", top)
	}
	if all := lb.GetTop(ctx, 0); len(all) != 3 {
		t.Fatalf("limit 0 must return all entries, got %d", len(all))
	}

	pos, e := lb.GetUserPosition(ctx, 1)
	if pos != 3 || e == nil || e.Score != 5.0 {
		t.Fatalf("unexpected position %d, %+v", pos, e)
	}
	if pos, e := lb.GetUserPosition(ctx, 99); pos != -1 || e != nil {
		t.Fatalf("unknown user must have no position, got %d", pos)
	}
}

// fakeGist serves the subset of the Gist API the leaderboard uses.
type fakeGist struct {
	mu      sync.Mutex
	content string
	patches int
	auth    string
}

func (f *fakeGist) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path != "/gists/abc" {
		http.NotFound(w, r)
		return
	}
	f.auth = r.Header.Get("Authorization")

	switch r.Method {
	case http.MethodGet:
		resp := map[string]any{
			"files": map[string]any{
				"leaderboard.json": map[string]string{"content": f.content},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	case http.MethodPatch:
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Files map[string]struct {
				Content string `json:"content"`
			} `json:"files"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.content = req.Files["leaderboard.json"].Content
		f.patches++
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestGistLeaderboard_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGist{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	gs := NewGistLeaderboardService("abc", "secret", 5*time.Second, logger.NewNop())
	gs.baseURL = srv.URL

	if !gs.AddEntry(ctx, entry(1, 3, 4, 7.5)) {
		t.Fatalf("expected first entry stored")
	}
	if gs.AddEntry(ctx, entry(1, 1, 4, 2.5)) {
		t.Fatalf("worse entry must not be stored")
	}
	if !gs.AddEntry(ctx, entry(2, 4, 4, 10.0)) {
		t.Fatalf("expected second user stored")
	}

	fake.mu.Lock()
	patches, auth := fake.patches, fake.auth
	fake.mu.Unlock()
	if patches != 2 {
		t.Errorf("expected 2 saves, got %d", patches)
	}
	if auth != "token secret" {
		t.Errorf("unexpected authorization header: %q", auth)
	}

	top := gs.GetTop(ctx, 10)
	if len(top) != 2 || top[0].UserID != 2 {
		t.Fatalf("unexpected top: %+v", top)
	}
	if pos, _ := gs.GetUserPosition(ctx, 1); pos != 2 {
		t.Fatalf("expected position 2, got %d", pos)
	}
}

func TestGistLeaderboard_LoadFailure(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gs := NewGistLeaderboardService("abc", "secret", time.Second, logger.NewNop())
	gs.baseURL = srv.URL

	if gs.AddEntry(ctx, entry(1, 1, 1, 10)) {
		t.Errorf("AddEntry must fail when the gist is unreachable")
	}
	if top := gs.GetTop(ctx, 5); len(top) != 0 {
		t.Errorf("expected empty top on failure, got %+v", top)
	}
	if pos, e := gs.GetUserPosition(ctx, 1); pos != -1 || e != nil {
		t.Errorf("expected no position on failure")
	}
}

func TestNewLeaderboardService_PicksBackend(t *testing.T) {
	if _, ok := NewLeaderboardService("", "", time.Second, logger.NewNop()).(*MemoryLeaderboardService); !ok {
		t.Errorf("expected memory backend without credentials")
	}
	if _, ok := NewLeaderboardService("id", "tok", time.Second, logger.NewNop()).(*GistLeaderboardService); !ok {
		t.Errorf("expected gist backend with credentials")
	}
}
