package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivilegedPlay_BypassesRanking(t *testing.T) {
	f := newFixture()

	// active=B, pending=[A]
	b := f.submit("song-b")
	_, err := f.engine.Advance(context.Background(), f.space.ID, f.host, 0)
	require.NoError(t, err)
	a := f.submit("song-a")

	promoted, err := f.engine.PrivilegedPlay(context.Background(), f.space.ID, uuid.New(), "song-c", "sig-123")
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, "vid-song-c", promoted.ExtractedID)

	// C is active immediately, B is retired, A is still pending.
	current, _, _, err := f.engine.Playback(context.Background(), f.space.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, promoted.ID, current.ID)
	assert.NotEqual(t, b.ID, current.ID)

	view := f.ranked()
	require.Len(t, view, 1)
	assert.Equal(t, a.ID, view[0].ID)
}

func TestPrivilegedPlay_UnconfirmedPayment(t *testing.T) {
	f := newFixture()
	f.oracle.confirmed = false

	_, err := f.engine.PrivilegedPlay(context.Background(), f.space.ID, uuid.New(), "song-c", "sig-123")
	assert.ErrorIs(t, err, ErrPaymentUnconfirmed)

	// Nothing may be half-applied.
	assert.Empty(t, f.ranked())
	assert.Empty(t, f.pub.all())
	current, _, _, err := f.engine.Playback(context.Background(), f.space.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestPrivilegedPlay_OracleFailure(t *testing.T) {
	f := newFixture()
	f.oracle.err = errors.New("rpc unreachable")

	_, err := f.engine.PrivilegedPlay(context.Background(), f.space.ID, uuid.New(), "song-c", "sig-123")
	assert.ErrorIs(t, err, ErrPaymentUnconfirmed)
	assert.Empty(t, f.ranked())
}

func TestPrivilegedPlay_ResolutionFailureAfterConfirmation(t *testing.T) {
	f := newFixture()
	f.resolver.fail = true

	_, err := f.engine.PrivilegedPlay(context.Background(), f.space.ID, uuid.New(), "song-c", "sig-123")
	assert.ErrorIs(t, err, ErrInvalidReference)

	// The payment was consumed but the queue stayed consistent.
	assert.Equal(t, 1, f.oracle.calls)
	assert.Empty(t, f.ranked())
	assert.Empty(t, f.pub.all())
}

func TestPrivilegedPlay_MarkedPaidInEventStream(t *testing.T) {
	f := newFixture()

	_, err := f.engine.PrivilegedPlay(context.Background(), f.space.ID, uuid.New(), "song-c", "sig-123")
	require.NoError(t, err)

	events := f.pub.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventTrackAdded, events[0].Kind)
	assert.Equal(t, EventPlaybackAdvanced, events[1].Kind)

	payload, ok := events[1].Payload.(PlaybackAdvancedPayload)
	require.True(t, ok)
	assert.True(t, payload.Paid)
	require.NotNil(t, payload.Track)
}

func TestPrivilegedPlay_DoesNotDisturbHostAdvanceSequence(t *testing.T) {
	f := newFixture()
	f.submit("song-a")

	_, err := f.engine.PrivilegedPlay(context.Background(), f.space.ID, uuid.New(), "song-c", "sig-123")
	require.NoError(t, err)

	// A host advance observing the post-promotion sequence succeeds.
	_, _, seq, err := f.engine.Playback(context.Background(), f.space.ID)
	require.NoError(t, err)
	active, err := f.engine.Advance(context.Background(), f.space.ID, f.host, seq)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "vid-song-a", active.ExtractedID)
}

func TestPrivilegedPlay_InactiveSpaceAfterConfirmation(t *testing.T) {
	f := newFixture()
	f.engine.spaces[f.space.ID].space.Active = false

	_, err := f.engine.PrivilegedPlay(context.Background(), f.space.ID, uuid.New(), "song-c", "sig-123")
	assert.ErrorIs(t, err, ErrSpaceInactive)
	assert.Equal(t, 1, f.oracle.calls)
}
