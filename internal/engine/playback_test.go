package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_SelectsRankedHead(t *testing.T) {
	f := newFixture()
	voter1, voter2, voter3 := uuid.New(), uuid.New(), uuid.New()

	a := f.submit("song-a")
	b := f.submit("song-b")

	_, _, err := f.engine.CastVote(context.Background(), f.space.ID, voter1, a.ID, VoteUp)
	require.NoError(t, err)
	_, _, err = f.engine.CastVote(context.Background(), f.space.ID, voter2, b.ID, VoteUp)
	require.NoError(t, err)
	_, _, err = f.engine.CastVote(context.Background(), f.space.ID, voter3, b.ID, VoteUp)
	require.NoError(t, err)

	view := f.ranked()
	require.Len(t, view, 2)
	assert.Equal(t, b.ID, view[0].ID)
	assert.Equal(t, 2, view[0].Score)
	assert.Equal(t, a.ID, view[1].ID)
	assert.Equal(t, 1, view[1].Score)

	active, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, b.ID, active.ID)

	view = f.ranked()
	require.Len(t, view, 1)
	assert.Equal(t, a.ID, view[0].ID)
}

func TestAdvance_EmptyQueueGoesIdleAndStaysIdle(t *testing.T) {
	f := newFixture()

	active, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	require.NoError(t, err)
	assert.Nil(t, active)

	current, startedAt, seq, err := f.engine.Playback(context.Background(), f.space.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Nil(t, startedAt)
	assert.Equal(t, uint64(1), seq)

	// Idle is a fixed point: advancing again with the fresh sequence keeps
	// the cursor idle.
	active, err = f.engine.Advance(context.Background(), f.space.ID, f.host, 1)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestAdvance_NonHostForbidden(t *testing.T) {
	f := newFixture()
	f.submit("song-a")

	_, err := f.engine.Advance(context.Background(), f.space.ID, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Len(t, f.ranked(), 1)
}

func TestAdvance_StaleSequenceDiscarded(t *testing.T) {
	f := newFixture()
	f.submit("song-a")
	f.submit("song-b")

	_, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	require.NoError(t, err)

	// A retry carrying the pre-advance sequence must not skip a second
	// track (end-of-track event racing the host button).
	_, err = f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	assert.ErrorIs(t, err, ErrConflict)

	require.Len(t, f.ranked(), 1)
}

func TestAdvance_UnknownSequenceDebouncedByTime(t *testing.T) {
	f := newFixture()
	f.submit("song-a")
	f.submit("song-b")

	_, err := f.engine.Advance(context.Background(), f.space.ID, f.host, SeqUnknown)
	require.NoError(t, err)

	_, err = f.engine.Advance(context.Background(), f.space.ID, f.host, SeqUnknown)
	assert.ErrorIs(t, err, ErrConflict)

	// Outside the debounce window the next advance goes through.
	f.clock.Advance(3 * time.Second)
	active, err := f.engine.Advance(context.Background(), f.space.ID, f.host, SeqUnknown)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Empty(t, f.ranked())
}

func TestAdvance_ActiveTrackNeverPending(t *testing.T) {
	f := newFixture()
	a := f.submit("song-a")

	active, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	require.NoError(t, err)
	require.Equal(t, a.ID, active.ID)

	for _, track := range f.ranked() {
		assert.NotEqual(t, a.ID, track.ID)
	}
}

func TestAdvance_SupersededTrackIsRetiredNotResurrected(t *testing.T) {
	f := newFixture()
	a := f.submit("song-a")
	b := f.submit("song-b")

	first, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	require.NoError(t, err)
	assert.Equal(t, a.ID, first.ID)

	second, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 1)
	require.NoError(t, err)
	assert.Equal(t, b.ID, second.ID)

	// The superseded track must not come back.
	assert.Empty(t, f.ranked())
	third, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 2)
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestAdvance_LockContentionTimesOut(t *testing.T) {
	f := newFixture()
	f.submit("song-a")

	state := f.engine.spaces[f.space.ID]
	require.NoError(t, state.lock(context.Background()))
	defer state.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.engine.Advance(ctx, f.space.ID, f.host, 0)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAdvance_PublishesInCommitOrder(t *testing.T) {
	f := newFixture()
	f.submit("song-a")

	_, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	require.NoError(t, err)

	events := f.pub.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventTrackAdded, events[0].Kind)
	assert.Equal(t, EventPlaybackAdvanced, events[1].Kind)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, uint64(2), events[1].Seq)

	payload, ok := events[1].Payload.(PlaybackAdvancedPayload)
	require.True(t, ok)
	require.NotNil(t, payload.Track)
	assert.False(t, payload.Paid)
}
