package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/space-queue-system/pkg/models"
)

const (
	defaultMaxQueueLen     = 20
	defaultAdvanceDebounce = 2 * time.Second
)

// SeqUnknown is passed as the expected advance sequence by callers that do
// not track playback state; the debounce window is used instead.
const SeqUnknown = ^uint64(0)

// ResolvedTrack is the metadata returned by the track resolver for a
// recognized link.
type ResolvedTrack struct {
	ExtractedID string
	Title       string
	SmallImg    string
	BigImg      string
	DurationMS  int
}

type Resolver interface {
	Resolve(ctx context.Context, ref string) (*ResolvedTrack, error)
}

// PaymentOracle confirms an out-of-band payment token. It exposes no partial
// states: a token is confirmed or it is not.
type PaymentOracle interface {
	Confirm(ctx context.Context, token string) (bool, error)
}

// Repository persists committed queue state. The engine never calls it while
// holding a space lock. LoadSpace reports a missing space with an error
// wrapping gorm.ErrRecordNotFound; any other error is treated as transient.
type Repository interface {
	LoadSpace(ctx context.Context, spaceID uuid.UUID) (*models.Space, []*models.Track, []*models.Vote, *models.PlaybackState, error)
	SaveTrack(ctx context.Context, track *models.Track) error
	SaveTracks(ctx context.Context, tracks []*models.Track) error
	SaveVote(ctx context.Context, vote *models.Vote) error
	SavePlayback(ctx context.Context, state *models.PlaybackState) error
}

type voteKey struct {
	trackID uuid.UUID
	voterID uuid.UUID
}

// spaceState holds the authoritative queue for one space. The sem channel is
// the space's mutual-exclusion scope: every mutation and every consistent
// read acquires it, and acquisition honors the caller's context so a stalled
// operation reports a retryable conflict instead of blocking forever.
type spaceState struct {
	sem chan struct{}

	space       models.Space
	tracks      map[uuid.UUID]*models.Track
	votes       map[voteKey]int
	activeTrack *uuid.UUID
	startedAt   *time.Time
	advanceSeq  uint64
	lastAdvance time.Time
	eventSeq    uint64
}

func (s *spaceState) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("space %s busy: %w", s.space.ID, ErrConflict)
	}
}

func (s *spaceState) unlock() {
	<-s.sem
}

// Engine is an arena of independent per-space queue states. Spaces never
// share a lock, so distinct spaces mutate fully in parallel.
type Engine struct {
	mu     sync.RWMutex
	spaces map[uuid.UUID]*spaceState

	resolver Resolver
	oracle   PaymentOracle
	repo     Repository
	pub      Publisher

	maxQueueLen     int
	advanceDebounce time.Duration
	now             func() time.Time
}

func New(resolver Resolver, oracle PaymentOracle, repo Repository, pub Publisher) *Engine {
	return &Engine{
		spaces:          make(map[uuid.UUID]*spaceState),
		resolver:        resolver,
		oracle:          oracle,
		repo:            repo,
		pub:             pub,
		maxQueueLen:     defaultMaxQueueLen,
		advanceDebounce: defaultAdvanceDebounce,
		now:             time.Now,
	}
}

// RegisterSpace makes a freshly created space addressable by the engine
// without a repository round trip.
func (e *Engine) RegisterSpace(space models.Space) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.spaces[space.ID]; exists {
		return
	}
	e.spaces[space.ID] = newSpaceState(space)
}

func newSpaceState(space models.Space) *spaceState {
	return &spaceState{
		sem:    make(chan struct{}, 1),
		space:  space,
		tracks: make(map[uuid.UUID]*models.Track),
		votes:  make(map[voteKey]int),
	}
}

// stateFor returns the in-memory state for a space, hydrating it from the
// repository on first touch after a restart.
func (e *Engine) stateFor(ctx context.Context, spaceID uuid.UUID) (*spaceState, error) {
	e.mu.RLock()
	state, ok := e.spaces[spaceID]
	e.mu.RUnlock()
	if ok {
		return state, nil
	}

	if e.repo == nil {
		return nil, fmt.Errorf("space %s not registered: %w", spaceID, ErrSpaceNotFound)
	}
	space, tracks, votes, playback, err := e.repo.LoadSpace(ctx, spaceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("space %s: %w", spaceID, ErrSpaceNotFound)
	}
	if err != nil {
		// A load failure is not proof of absence; surface it so the caller
		// retries instead of treating the space as gone.
		return nil, fmt.Errorf("failed to load space %s: %w", spaceID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.spaces[spaceID]; ok {
		// Another caller hydrated it first.
		return state, nil
	}

	state = newSpaceState(*space)
	for _, t := range tracks {
		track := *t
		state.tracks[track.ID] = &track
	}
	for _, v := range votes {
		state.votes[voteKey{trackID: v.TrackID, voterID: v.VoterID}] = v.Value
	}
	if playback != nil {
		state.activeTrack = playback.ActiveTrackID
		state.startedAt = playback.StartedAt
		state.advanceSeq = playback.AdvanceSeq
	}
	e.spaces[spaceID] = state
	return state, nil
}

// publish enqueues an event while the caller still holds the space lock, so
// per-space event order matches mutation commit order.
func (e *Engine) publish(state *spaceState, kind EventKind, payload interface{}) {
	state.eventSeq++
	if e.pub == nil {
		return
	}
	e.pub.Publish(state.space.ID, Event{
		SpaceID: state.space.ID,
		Kind:    kind,
		Seq:     state.eventSeq,
		Payload: payload,
	})
}

func (e *Engine) persistTrack(track models.Track) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repo.SaveTrack(ctx, &track); err != nil {
		log.Printf("Warning: failed to persist track %s: %v", track.ID, err)
	}
}

func (e *Engine) persistTracks(tracks []models.Track) {
	if e.repo == nil || len(tracks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batch := make([]*models.Track, len(tracks))
	for i := range tracks {
		batch[i] = &tracks[i]
	}
	if err := e.repo.SaveTracks(ctx, batch); err != nil {
		log.Printf("Warning: failed to persist %d tracks: %v", len(batch), err)
	}
}

func (e *Engine) persistVote(vote models.Vote) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repo.SaveVote(ctx, &vote); err != nil {
		log.Printf("Warning: failed to persist vote %s: %v", vote.ID, err)
	}
}

func (e *Engine) persistPlayback(state models.PlaybackState) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repo.SavePlayback(ctx, &state); err != nil {
		log.Printf("Warning: failed to persist playback state for space %s: %v", state.SpaceID, err)
	}
}
