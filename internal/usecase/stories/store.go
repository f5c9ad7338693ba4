// Package stories holds the in-memory mirror of the sheet and applies every
// write under the action's optimistic policy.
package stories

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"qissati/internal/domain"
	"qissati/internal/infra/metrics"
	"qissati/internal/normalize"
)

// unknownStoryTitle is sent when an answer is submitted with no story displayed.
const unknownStoryTitle = "Unknown"

// Config holds the store collaborators.
type Config struct {
	Gateway    domain.Gateway
	Normalizer *normalize.Normalizer
	Logger     zerolog.Logger
	Clock      func() time.Time
}

// Store is the synchronization store. All methods are safe for concurrent use;
// the lock is never held across network calls, so overlapping writes resolve
// as last-completed-wins.
type Store struct {
	gateway domain.Gateway
	norm    *normalize.Normalizer
	log     zerolog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	stories   []domain.Story
	responses []domain.StudentResponse
	pickedID  string
	status    domain.ConnectionStatus
	lastID    int64
	closed    bool

	busy atomic.Int32
}

// New creates an empty store in the idle state.
func New(cfg Config) *Store {
	norm := cfg.Normalizer
	if norm == nil {
		norm = normalize.New()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		gateway: cfg.Gateway,
		norm:    norm,
		log:     cfg.Logger,
		now:     clock,
		status:  domain.ConnIdle,
	}
}

// Close disposes the store. Later operations fail with domain.ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stories = nil
	s.responses = nil
	s.pickedID = ""
}

// Refresh replaces both collections from the sheet. A key missing from the
// payload leaves its collection as it was. On failure nothing changes except the
// connection status.
func (s *Store) Refresh(ctx context.Context) error {
	if s.isClosed() {
		return domain.ErrStoreClosed
	}
	s.busy.Add(1)
	defer s.busy.Add(-1)

	payload, err := s.gateway.FetchState(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = domain.ConnError
		s.mu.Unlock()
		metrics.ObserveRefresh(err, 0, 0)
		s.log.Error().Err(err).Msg("stories: refresh failed")
		return fmt.Errorf("refresh: %w", err)
	}

	var stories []domain.Story
	var responses []domain.StudentResponse
	if payload.HasStories {
		stories = s.norm.Stories(payload.Stories)
	}
	if payload.HasResponses {
		responses = s.norm.Responses(payload.Responses)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	if payload.HasStories {
		s.stories = stories
	}
	if payload.HasResponses {
		s.responses = responses
	}
	s.status = domain.ConnConnected
	storyCount, responseCount := len(s.stories), len(s.responses)
	s.mu.Unlock()

	metrics.ObserveRefresh(nil, storyCount, responseCount)
	s.log.Debug().Int("stories", storyCount).Int("responses", responseCount).Msg("stories: refreshed")
	return nil
}

// SubmitAnswer records an answer for the displayed story. The new response is
// visible immediately and stays even if the sheet rejects it, so the caller can
// always report success. Only validation and a closed store produce errors.
func (s *Store) SubmitAnswer(ctx context.Context, a domain.Answer) (domain.StudentResponse, error) {
	s.mu.RLock()
	picked := s.pickedID
	s.mu.RUnlock()
	return s.SubmitAnswerFor(ctx, picked, a)
}

// SubmitAnswerFor is SubmitAnswer for a viewer holding its own selection.
func (s *Store) SubmitAnswerFor(ctx context.Context, pickedID string, a domain.Answer) (domain.StudentResponse, error) {
	if err := validateAnswer(a); err != nil {
		return domain.StudentResponse{}, err
	}
	if s.isClosed() {
		return domain.StudentResponse{}, domain.ErrStoreClosed
	}
	story, ok := s.DisplayedFor(pickedID)
	remoteTitle := story.Title
	if !ok {
		remoteTitle = unknownStoryTitle
	}
	id := s.nextID()
	resp := domain.StudentResponse{
		ID:          id,
		Timestamp:   FormatLocalTimestamp(s.now()),
		StoryID:     story.ID,
		StoryTitle:  story.Title,
		StudentName: a.Name,
		ClassName:   a.Class,
		Answer:      a.Text,
	}
	err := s.write(ctx, domain.SubmitAnswerCommand(id, remoteTitle, a), func() func() {
		s.mu.Lock()
		s.responses = append([]domain.StudentResponse{resp}, s.responses...)
		s.mu.Unlock()
		return nil
	})
	return resp, err
}

// AddStory sends add_story and, once accepted, refreshes from the sheet. The
// generated id is returned even on failure since the write may still land.
func (s *Store) AddStory(ctx context.Context, f domain.StoryFields) (string, error) {
	f, err := s.prepareFields(f)
	if err != nil {
		return "", err
	}
	if s.isClosed() {
		return "", domain.ErrStoreClosed
	}
	id := s.nextID()
	return id, s.write(ctx, domain.AddStoryCommand(id, f), nil)
}

// EditStory sends edit_story and, once accepted, refreshes from the sheet.
func (s *Store) EditStory(ctx context.Context, id string, f domain.StoryFields) error {
	if strings.TrimSpace(id) == "" {
		return &domain.ValidationError{Field: "id", Message: "معرّف القصة مطلوب"}
	}
	f, err := s.prepareFields(f)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return domain.ErrStoreClosed
	}
	return s.write(ctx, domain.EditStoryCommand(id, f), nil)
}

// DeleteStory removes the story locally and restores the exact previous
// collection if the sheet rejects the delete.
func (s *Store) DeleteStory(ctx context.Context, id string) error {
	if s.isClosed() {
		return domain.ErrStoreClosed
	}
	return s.write(ctx, domain.DeleteStoryCommand(id), func() func() {
		s.mu.Lock()
		previous := slices.Clone(s.stories)
		s.stories = slices.DeleteFunc(slices.Clone(s.stories), func(st domain.Story) bool { return st.ID == id })
		normalize.MarkToday(s.stories)
		s.mu.Unlock()
		return func() {
			s.mu.Lock()
			s.stories = previous
			s.mu.Unlock()
		}
	})
}

// DeleteResponse removes the response locally. A failed remote delete is logged
// and the response stays removed.
func (s *Store) DeleteResponse(ctx context.Context, id string) error {
	if s.isClosed() {
		return domain.ErrStoreClosed
	}
	return s.write(ctx, domain.DeleteResponseCommand(id), func() func() {
		s.mu.Lock()
		s.responses = slices.DeleteFunc(slices.Clone(s.responses), func(r domain.StudentResponse) bool { return r.ID == id })
		s.mu.Unlock()
		return nil
	})
}

// write sends cmd under its policy. apply performs the optimistic local change
// and returns the function that undoes it, or nil when nothing can be undone.
func (s *Store) write(ctx context.Context, cmd domain.Command, apply func() (restore func())) error {
	policy := domain.PolicyFor(cmd.Action)
	logger := s.log.With().Str("action", string(cmd.Action)).Str("id", cmd.ID).Str("policy", policy.String()).Logger()

	var restore func()
	if policy != domain.PolicyRemoteFirst && apply != nil {
		restore = apply()
	}

	s.busy.Add(1)
	_, err := s.gateway.SendCommand(ctx, cmd)
	s.busy.Add(-1)
	metrics.ObserveWrite(string(cmd.Action), policy.String(), err)

	if err == nil {
		if policy == domain.PolicyRemoteFirst {
			if rerr := s.Refresh(ctx); rerr != nil {
				logger.Warn().Err(rerr).Msg("stories: refresh after write failed")
			}
		}
		return nil
	}

	switch policy {
	case domain.PolicyKeepOnFailure:
		logger.Warn().Err(err).Msg("stories: remote write failed, keeping local change")
		return nil
	case domain.PolicyRollbackOnFailure:
		if restore != nil {
			restore()
		}
		metrics.IncRollback(string(cmd.Action))
		logger.Error().Err(err).Msg("stories: remote write failed, local change restored")
		return err
	default:
		logger.Error().Err(err).Msg("stories: remote write failed")
		return err
	}
}

func (s *Store) Stories() []domain.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.stories)
}

// Responses returns a copy of the responses, newest first.
func (s *Store) Responses() []domain.StudentResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.responses)
}

// ResponsesFor returns the responses linked to a story title.
func (s *Store) ResponsesFor(title string) []domain.StudentResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StudentResponse
	for _, r := range s.responses {
		if r.StoryTitle == title {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) Story(id string) (domain.Story, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findStory(s.stories, id)
}

// Today returns the most recent story.
func (s *Store) Today() (domain.Story, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.stories) == 0 {
		return domain.Story{}, false
	}
	return s.stories[0], true
}

// Displayed returns the archive-picked story, or Today when nothing is picked
// or the picked story is gone.
func (s *Store) Displayed() (domain.Story, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return displayed(s.stories, s.pickedID)
}

// DisplayedFor resolves a selection held by another viewer (one per bot chat).
func (s *Store) DisplayedFor(pickedID string) (domain.Story, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return displayed(s.stories, pickedID)
}

// Select picks an archive story for display.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := findStory(s.stories, id); !ok {
		return domain.ErrStoryNotFound
	}
	s.pickedID = id
	return nil
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.pickedID = ""
	s.mu.Unlock()
}

func (s *Store) Status() domain.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Busy reports whether a network call is in flight.
func (s *Store) Busy() bool {
	return s.busy.Load() > 0
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// nextID returns a millisecond timestamp token, bumped to stay unique.
func (s *Store) nextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

func (s *Store) prepareFields(f domain.StoryFields) (domain.StoryFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.VideoURL = strings.TrimSpace(f.VideoURL)
	switch {
	case f.Title == "":
		return f, &domain.ValidationError{Field: "title", Message: "عنوان القصة مطلوب"}
	case strings.TrimSpace(f.Content) == "":
		return f, &domain.ValidationError{Field: "content", Message: "نص القصة مطلوب"}
	case strings.TrimSpace(f.Question) == "":
		return f, &domain.ValidationError{Field: "question", Message: "سؤال اليوم مطلوب"}
	}
	if f.Type != domain.StoryVideo {
		f.Type = domain.StoryText
	}
	if f.Date == "" {
		f.Date = s.now().UTC().Format("2006-01-02")
	}
	return f, nil
}

func validateAnswer(a domain.Answer) error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return &domain.ValidationError{Field: "name", Message: "الاسم مطلوب"}
	case strings.TrimSpace(a.Class) == "":
		return &domain.ValidationError{Field: "class", Message: "الصف مطلوب"}
	case strings.TrimSpace(a.Text) == "":
		return &domain.ValidationError{Field: "answer", Message: "الإجابة مطلوبة"}
	}
	return nil
}

func displayed(stories []domain.Story, pickedID string) (domain.Story, bool) {
	if pickedID != "" {
		if st, ok := findStory(stories, pickedID); ok {
			return st, true
		}
	}
	if len(stories) == 0 {
		return domain.Story{}, false
	}
	return stories[0], true
}

func findStory(stories []domain.Story, id string) (domain.Story, bool) {
	for _, st := range stories {
		if st.ID == id {
			return st, true
		}
	}
	return domain.Story{}, false
}
