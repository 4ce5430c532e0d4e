package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/space-queue-system/pkg/metrics"
	"github.com/space-queue-system/pkg/models"
)

type VoteDirection string

const (
	VoteUp   VoteDirection = "upvote"
	VoteDown VoteDirection = "downvote"
)

func (d VoteDirection) value() int {
	if d == VoteUp {
		return 1
	}
	return -1
}

func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// CastVote upserts the (voter, track) vote. Re-casting the same direction is
// a no-op with delta 0; flipping direction yields a delta of ±2; a first vote
// yields ±1. The running score lives on the track, the ledger map is only
// consulted for the idempotence check. Returns the applied delta and the new
// score.
func (e *Engine) CastVote(ctx context.Context, spaceID, voter, trackID uuid.UUID, direction VoteDirection) (int, int, error) {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return 0, 0, err
	}

	if err := state.lock(ctx); err != nil {
		return 0, 0, err
	}

	track, ok := state.tracks[trackID]
	if !ok {
		state.unlock()
		return 0, 0, ErrTrackNotFound
	}
	if track.Removed || track.Played || state.isActive(trackID) {
		// Only pending tracks are votable. Played and active tracks have
		// left the queue and their scores are frozen.
		state.unlock()
		return 0, 0, ErrTrackRemoved
	}

	key := voteKey{trackID: trackID, voterID: voter}
	value := direction.value()
	delta := value
	if prev, voted := state.votes[key]; voted {
		if prev == value {
			// Duplicate click or client retry; nothing to apply.
			state.unlock()
			return 0, track.Score, nil
		}
		delta = 2 * value
	}

	state.votes[key] = value
	track.Score += delta
	track.UpdatedAt = e.now()
	newScore := track.Score
	trackSnapshot := *track

	e.publish(state, EventVoteChanged, VoteChangedPayload{
		TrackID:  trackID,
		NewScore: newScore,
		VoterID:  voter,
		Vote:     string(direction),
	})
	state.unlock()

	metrics.VotesCast.WithLabelValues(spaceID.String(), string(direction)).Inc()
	e.persistVote(models.Vote{
		ID:        uuid.New(),
		TrackID:   trackID,
		VoterID:   voter,
		Value:     value,
		CreatedAt: e.now(),
		UpdatedAt: e.now(),
	})
	e.persistTrack(trackSnapshot)
	return delta, newScore, nil
}

// ScoreOf reports a track's current net score.
func (e *Engine) ScoreOf(ctx context.Context, spaceID, trackID uuid.UUID) (int, error) {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return 0, err
	}

	if err := state.lock(ctx); err != nil {
		return 0, err
	}
	defer state.unlock()

	track, ok := state.tracks[trackID]
	if !ok {
		return 0, ErrTrackNotFound
	}
	return track.Score, nil
}
