package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/space-queue-system/pkg/models"
)

type stubResolver struct {
	fail bool
}

func (r *stubResolver) Resolve(ctx context.Context, ref string) (*ResolvedTrack, error) {
	if r.fail {
		return nil, errors.New("unrecognized link")
	}
	return &ResolvedTrack{
		ExtractedID: "vid-" + ref,
		Title:       "Title for " + ref,
		SmallImg:    "https://img.example/" + ref + "/small.jpg",
		BigImg:      "https://img.example/" + ref + "/big.jpg",
	}, nil
}

type stubOracle struct {
	confirmed bool
	err       error
	calls     int
}

func (o *stubOracle) Confirm(ctx context.Context, token string) (bool, error) {
	o.calls++
	return o.confirmed, o.err
}

// memRepo is an in-memory Repository used both as a write sink and as the
// hydration source for restart tests. Setting loadErr makes LoadSpace fail
// the way an unreachable database would.
type memRepo struct {
	mu       sync.Mutex
	space    *models.Space
	tracks   map[uuid.UUID]models.Track
	votes    map[voteKey]models.Vote
	playback *models.PlaybackState
	loadErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{
		tracks: make(map[uuid.UUID]models.Track),
		votes:  make(map[voteKey]models.Vote),
	}
}

func (r *memRepo) LoadSpace(ctx context.Context, spaceID uuid.UUID) (*models.Space, []*models.Track, []*models.Vote, *models.PlaybackState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, nil, nil, nil, r.loadErr
	}
	if r.space == nil || r.space.ID != spaceID {
		return nil, nil, nil, nil, fmt.Errorf("no such space: %w", gorm.ErrRecordNotFound)
	}
	space := *r.space
	var tracks []*models.Track
	for _, t := range r.tracks {
		track := t
		tracks = append(tracks, &track)
	}
	var votes []*models.Vote
	for _, v := range r.votes {
		vote := v
		votes = append(votes, &vote)
	}
	var playback *models.PlaybackState
	if r.playback != nil {
		p := *r.playback
		playback = &p
	}
	return &space, tracks, votes, playback, nil
}

func (r *memRepo) SaveTrack(ctx context.Context, track *models.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[track.ID] = *track
	return nil
}

func (r *memRepo) SaveTracks(ctx context.Context, tracks []*models.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, track := range tracks {
		r.tracks[track.ID] = *track
	}
	return nil
}

func (r *memRepo) SaveVote(ctx context.Context, vote *models.Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes[voteKey{trackID: vote.TrackID, voterID: vote.VoterID}] = *vote
	return nil
}

func (r *memRepo) SavePlayback(ctx context.Context, state *models.PlaybackState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *state
	r.playback = &p
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(spaceID uuid.UUID, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) all() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) kinds() []EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type testFixture struct {
	engine   *Engine
	resolver *stubResolver
	oracle   *stubOracle
	repo     *memRepo
	pub      *recordingPublisher
	space    models.Space
	host     uuid.UUID
	clock    *fakeClock
}

// fakeClock hands out strictly increasing timestamps so creation-time
// tie-breaks are deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture() *testFixture {
	host := uuid.New()
	space := models.Space{
		ID:        uuid.New(),
		Code:      "ABC123",
		HostID:    host,
		Name:      "test space",
		Active:    true,
		CreatedAt: time.Now(),
	}

	f := &testFixture{
		resolver: &stubResolver{},
		oracle:   &stubOracle{confirmed: true},
		repo:     newMemRepo(),
		pub:      &recordingPublisher{},
		space:    space,
		host:     host,
		clock:    &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.repo.space = &space
	f.engine = New(f.resolver, f.oracle, f.repo, f.pub)
	f.engine.now = f.clock.Now
	f.engine.RegisterSpace(space)
	return f
}

func (f *testFixture) submit(ref string) *models.Track {
	track, err := f.engine.Submit(context.Background(), f.space.ID, uuid.New(), ref)
	if err != nil {
		panic(err)
	}
	return track
}

func (f *testFixture) ranked() []models.Track {
	view, err := f.engine.RankedView(context.Background(), f.space.ID)
	if err != nil {
		panic(err)
	}
	return view
}
