// Package session tracks per-session conversation state in memory: a
// bounded ring of recent events, extracted topics and errors, research
// history, and a stuck indicator.
//
// Ingest is the single writer for a session's state; the watcher and the
// API read cloned snapshots. Sessions are created on first event and
// pruned once idle beyond the configured TTL.
package session

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/similarity"
)

const (
	// stuckThreshold is how many consecutive same-focus tool-call
	// sequences count as stuck.
	stuckThreshold = 2

	// maxRecentErrors bounds the captured error list per session.
	maxRecentErrors = 10

	// maxResearchHistory bounds the per-session research history.
	maxResearchHistory = 20

	// maxTopics bounds the topic multiset; the stalest topic is dropped
	// past it.
	maxTopics = 50
)

// errorLinePattern matches lines worth capturing as recent errors.
var errorLinePattern = regexp.MustCompile(`(?i)\b(error|exception|traceback|panic|fatal|failed|failure|cannot find|undefined|not found|no such|permission denied)\b`)

// stopwords are tokens too generic to count as topics.
var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "been": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "about": {},
	"into": {}, "then": {}, "than": {}, "when": {}, "what": {}, "where": {},
	"which": {}, "while": {}, "your": {}, "there": {}, "here": {},
	"please": {}, "need": {}, "want": {}, "make": {}, "like": {},
	"just": {}, "some": {}, "more": {}, "does": {}, "using": {},
	"file": {}, "line": {}, "code": {},
}

// state is the mutable record for one tracked session.
type state struct {
	id         string
	workingDir string

	events     []Event // ring: oldest first, capped at maxEvents
	topics     map[string]*TopicStat
	errors     []string
	history    []ResearchRecord
	stuck      StuckState
	inToolSeq  bool
	analyzedAt time.Time
	lastEvent  time.Time
}

// Tracker holds all tracked sessions.
type Tracker struct {
	mu        sync.RWMutex
	sessions  map[string]*state
	maxEvents int
}

// NewTracker creates an empty tracker bounded by the sessions config.
func NewTracker(cfg *config.SessionsConfig) *Tracker {
	maxEvents := 100
	if cfg != nil && cfg.MaxEvents > 0 {
		maxEvents = cfg.MaxEvents
	}
	return &Tracker{
		sessions:  make(map[string]*state),
		maxEvents: maxEvents,
	}
}

// Ingest appends an event to the session's ring, creating the session on
// first contact, and updates the derived topic/error/stuck state.
func (t *Tracker) Ingest(sessionID string, ev Event) {
	if sessionID == "" || ev.Content == "" {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		s = &state{
			id:     sessionID,
			topics: make(map[string]*TopicStat),
		}
		t.sessions[sessionID] = s
	}

	s.events = append(s.events, ev)
	if len(s.events) > t.maxEvents {
		s.events = s.events[len(s.events)-t.maxEvents:]
	}
	s.lastEvent = ev.Timestamp

	switch ev.Type {
	case EventUserPrompt:
		s.extractTopics(ev)
		s.inToolSeq = false
	case EventToolCall:
		s.extractTopics(ev)
		s.updateStuck(ev)
	case EventToolOutput:
		s.captureErrors(ev)
		s.inToolSeq = false
	default:
		s.inToolSeq = false
	}
}

// SetWorkingDir records the session's project directory.
func (t *Tracker) SetWorkingDir(sessionID, dir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[sessionID]; ok {
		s.workingDir = dir
	}
}

// GetWatcherContext returns a cloned snapshot for the watcher's decision
// prompt, or false when the session is unknown.
func (t *Tracker) GetWatcherContext(sessionID string) (*WatcherContext, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, false
	}

	recent := make([]Event, len(s.events))
	copy(recent, s.events)

	return &WatcherContext{
		SessionID:       s.id,
		WorkingDir:      s.workingDir,
		CurrentTask:     s.currentTask(),
		Topics:          s.topTopics(8),
		RecentErrors:    append([]string(nil), s.errors...),
		ResearchHistory: append([]ResearchRecord(nil), s.history...),
		RecentMessages:  recent,
		Stuck:           s.stuck,
		EventCount:      len(s.events),
	}, true
}

// LatestToolOutput returns the content of the most recent toolOutput
// event, or "" when none exists.
func (t *Tracker) LatestToolOutput(sessionID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return ""
	}
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == EventToolOutput {
			return s.events[i].Content
		}
	}
	return ""
}

// HasRecentSimilarResearch reports whether this session already researched
// a similar query within the window (Jaccard over normalized tokens).
func (t *Tracker) HasRecentSimilarResearch(sessionID, text string, window time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return false
	}
	cutoff := time.Now().Add(-window)
	for _, rec := range s.history {
		if rec.At.Before(cutoff) {
			continue
		}
		if similarity.TextJaccard(rec.Query, text) >= 0.8 {
			return true
		}
	}
	return false
}

// RecordResearch appends a query to the session's research history.
func (t *Tracker) RecordResearch(sessionID, query string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	s.history = append(s.history, ResearchRecord{Query: query, At: time.Now()})
	if len(s.history) > maxResearchHistory {
		s.history = s.history[len(s.history)-maxResearchHistory:]
	}
}

// MarkAnalyzed stamps the watcher decision time.
func (t *Tracker) MarkAnalyzed(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[sessionID]; ok {
		s.analyzedAt = time.Now()
	}
}

// PruneInactive removes sessions idle beyond the TTL and returns how many
// were dropped.
func (t *Tracker) PruneInactive(idle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	pruned := 0
	for id, s := range t.sessions {
		if s.lastEvent.Before(cutoff) {
			delete(t.sessions, id)
			pruned++
		}
	}
	return pruned
}

// List returns a summary of every tracked session.
func (t *Tracker) List() []Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Summary, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.summary())
	}
	return out
}

// Get returns the summary of one session, or false when unknown.
func (t *Tracker) Get(sessionID string) (Summary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return Summary{}, false
	}
	return s.summary(), true
}

// Stats returns the tracker census.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := Stats{Sessions: len(t.sessions)}
	for _, s := range t.sessions {
		st.TotalEvents += len(s.events)
	}
	return st
}

func (s *state) summary() Summary {
	sum := Summary{
		SessionID:     s.id,
		WorkingDir:    s.workingDir,
		EventCount:    len(s.events),
		TopTopics:     s.topTopics(5),
		ResearchCount: len(s.history),
		LastEventAt:   s.lastEvent,
	}
	if !s.analyzedAt.IsZero() {
		at := s.analyzedAt
		sum.LastAnalyzedAt = &at
	}
	return sum
}

// currentTask is the most recent user prompt, truncated for prompt use.
func (s *state) currentTask() string {
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == EventUserPrompt {
			task := s.events[i].Content
			if len(task) > 300 {
				task = task[:300]
			}
			return task
		}
	}
	return ""
}

// extractTopics tokenizes the event content and bumps significant terms.
func (s *state) extractTopics(ev Event) {
	for _, tok := range similarity.Tokens(ev.Content) {
		if len(tok) < 4 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		if stat, ok := s.topics[tok]; ok {
			stat.Count++
			stat.LastSeen = ev.Timestamp
		} else {
			s.topics[tok] = &TopicStat{Count: 1, LastSeen: ev.Timestamp}
		}
	}
	s.evictStalestTopics()
}

func (s *state) evictStalestTopics() {
	for len(s.topics) > maxTopics {
		var stalest string
		var oldest time.Time
		for topic, stat := range s.topics {
			if stalest == "" || stat.LastSeen.Before(oldest) {
				stalest = topic
				oldest = stat.LastSeen
			}
		}
		delete(s.topics, stalest)
	}
}

// topTopics ranks topics by count with recency decay: a topic's score
// halves for every 30 minutes since it was last seen.
func (s *state) topTopics(n int) []string {
	type scored struct {
		topic string
		score float64
	}
	now := time.Now()
	ranked := make([]scored, 0, len(s.topics))
	for topic, stat := range s.topics {
		age := now.Sub(stat.LastSeen).Minutes()
		score := float64(stat.Count) / (1 + age/30)
		ranked = append(ranked, scored{topic, score})
	}
	// Insertion sort: topic counts stay small.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.topic
	}
	return out
}

// captureErrors keeps lines of tool output that look like failures.
func (s *state) captureErrors(ev Event) {
	for _, line := range strings.Split(ev.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !errorLinePattern.MatchString(line) {
			continue
		}
		if len(line) > 300 {
			line = line[:300]
		}
		s.errors = append(s.errors, line)
	}
	if len(s.errors) > maxRecentErrors {
		s.errors = s.errors[len(s.errors)-maxRecentErrors:]
	}
}

// updateStuck tracks the focus area across consecutive tool-call
// sequences. A sequence is an unbroken run of toolCall events; the focus
// is the first token of the call (the tool name).
func (s *state) updateStuck(ev Event) {
	focus := toolFocus(ev.Content)
	if focus == "" {
		return
	}
	if !s.inToolSeq {
		if focus == s.stuck.Focus {
			s.stuck.Repeats++
		} else {
			s.stuck = StuckState{Focus: focus, Repeats: 1}
		}
	}
	s.inToolSeq = true
}

func toolFocus(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
