package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PoluyanbIch/DocxQuizBot/internal/logger"
)

type LeaderboardEntry struct {
	UserID    int64   `json:"user_id"`
	Username  string  `json:"username"`
	FirstName string  `json:"first_name"`
	QuizID    string  `json:"quiz_id"`
	FileName  string  `json:"file_name"`
	Correct   int     `json:"correct"`
	Total     int     `json:"total"`
	Score     float64 `json:"score"`
	Date      string  `json:"date"`
}

type LeaderboardService interface {
	AddEntry(ctx context.Context, entry LeaderboardEntry) bool
	GetTop(ctx context.Context, limit int) []LeaderboardEntry
	GetUserPosition(ctx context.Context, userID int64) (int, *LeaderboardEntry)
}

const dateLayout = "02.01.2006 15:04"

// NewLeaderboardEntry builds an entry from a finished quiz report.
func NewLeaderboardEntry(userID int64, username, firstName, quizID, fileName string, report Report, at time.Time) LeaderboardEntry {
	return LeaderboardEntry{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		QuizID:    quizID,
		FileName:  fileName,
		Correct:   report.Correct,
		Total:     report.Total,
		Score:     report.Score,
		Date:      at.Format(dateLayout),
	}
}

func isBetter(a, b LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Correct > b.Correct
}

// mergeEntry keeps only the best result per user. It reports whether entry was stored.
func mergeEntry(entries []LeaderboardEntry, entry LeaderboardEntry) ([]LeaderboardEntry, bool) {
	for i, e := range entries {
		if e.UserID == entry.UserID {
			if isBetter(entry, e) {
				entries[i] = entry
				return entries, true
			}
			return entries, false
		}
	}
	return append(entries, entry), true
}

func topEntries(entries []LeaderboardEntry, limit int) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return isBetter(sorted[i], sorted[j])
	})

	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}

func position(entries []LeaderboardEntry, userID int64) (int, *LeaderboardEntry) {
	for i, entry := range topEntries(entries, 0) {
		if entry.UserID == userID {
			e := entry
			return i + 1, &e
		}
	}
	return -1, nil
}

// GistLeaderboardService keeps the leaderboard as a JSON file in a GitHub Gist.
type GistLeaderboardService struct {
	gistID      string
	githubToken string
	filename    string
	baseURL     string
	client      *http.Client
	log         *logger.Logger
	mu          sync.Mutex
}

// NewLeaderboardService picks the Gist backend when credentials are present.
// Otherwise results live in memory and are lost on restart.
func NewLeaderboardService(gistID, githubToken string, timeout time.Duration, log *logger.Logger) LeaderboardService {
	if gistID != "" && githubToken != "" {
		return NewGistLeaderboardService(gistID, githubToken, timeout, log)
	}
	return NewMemoryLeaderboardService()
}

func NewGistLeaderboardService(gistID, githubToken string, timeout time.Duration, log *logger.Logger) *GistLeaderboardService {
	return &GistLeaderboardService{
		gistID:      gistID,
		githubToken: githubToken,
		filename:    "leaderboard.json",
		baseURL:     "https://api.github.com",
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

func (gs *GistLeaderboardService) gistURL() string {
	return fmt.Sprintf("%s/gists/%s", strings.TrimSuffix(gs.baseURL, "/"), gs.gistID)
}

func (gs *GistLeaderboardService) load(ctx context.Context) ([]LeaderboardEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gs.gistURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+gs.githubToken)

	resp, err := gs.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gist load: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var gist struct {
		Files map[string]struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &gist); err != nil {
		return nil, fmt.Errorf("gist load: %w", err)
	}

	var entries []LeaderboardEntry
	if file, ok := gist.Files[gs.filename]; ok && file.Content != "" {
		if err := json.Unmarshal([]byte(file.Content), &entries); err != nil {
			return nil, fmt.Errorf("gist content: %w", err)
		}
	}
	return entries, nil
}

func (gs *GistLeaderboardService) save(ctx context.Context, entries []LeaderboardEntry) error {
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	payload := map[string]any{
		"files": map[string]any{
			gs.filename: map[string]any{
				"content": string(content),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, gs.gistURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+gs.githubToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := gs.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gist save: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (gs *GistLeaderboardService) AddEntry(ctx context.Context, entry LeaderboardEntry) bool {
	// load-modify-save is not atomic on the Gist side; serialize within this process
	gs.mu.Lock()
	defer gs.mu.Unlock()

	entries, err := gs.load(ctx)
	if err != nil {
		gs.log.Error("leaderboard load failed", "error", err)
		return false
	}

	entries, stored := mergeEntry(entries, entry)
	if !stored {
		return false
	}

	if err := gs.save(ctx, entries); err != nil {
		gs.log.Error("leaderboard save failed", "error", err)
		return false
	}
	return true
}

func (gs *GistLeaderboardService) GetTop(ctx context.Context, limit int) []LeaderboardEntry {
	entries, err := gs.load(ctx)
	if err != nil {
		gs.log.Error("leaderboard load failed", "error", err)
		return nil
	}
	return topEntries(entries, limit)
}

func (gs *GistLeaderboardService) GetUserPosition(ctx context.Context, userID int64) (int, *LeaderboardEntry) {
	entries, err := gs.load(ctx)
	if err != nil {
		gs.log.Error("leaderboard load failed", "error", err)
		return -1, nil
	}
	return position(entries, userID)
}

// MemoryLeaderboardService is the fallback backend.
type MemoryLeaderboardService struct {
	mu      sync.RWMutex
	entries []LeaderboardEntry
}

func NewMemoryLeaderboardService() *MemoryLeaderboardService {
	return &MemoryLeaderboardService{
		entries: make([]LeaderboardEntry, 0),
	}
}

func (ms *MemoryLeaderboardService) AddEntry(_ context.Context, entry LeaderboardEntry) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var stored bool
	ms.entries, stored = mergeEntry(ms.entries, entry)
	return stored
}

func (ms *MemoryLeaderboardService) GetTop(_ context.Context, limit int) []LeaderboardEntry {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return topEntries(ms.entries, limit)
}

func (ms *MemoryLeaderboardService) GetUserPosition(_ context.Context, userID int64) (int, *LeaderboardEntry) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return position(ms.entries, userID)
}
