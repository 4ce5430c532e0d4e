package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/space-queue-system/pkg/metrics"
	"github.com/space-queue-system/pkg/models"
)

// Advance moves the playback cursor to the head of the ranked view, or to
// idle when the queue is empty. Host only; the admission controller uses its
// own promotion path.
//
// expectedSeq is the advance sequence the caller last observed (from a
// playback-advanced event or a sync). A stale sequence means the caller is
// retrying an advance that already happened, so it is discarded with
// ErrConflict instead of skipping a second track. Callers that do not track
// the sequence pass SeqUnknown and are debounced by time instead.
func (e *Engine) Advance(ctx context.Context, spaceID, actor uuid.UUID, expectedSeq uint64) (*models.Track, error) {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	if err := state.lock(ctx); err != nil {
		return nil, err
	}

	if actor != state.space.HostID {
		state.unlock()
		return nil, ErrForbidden
	}
	if expectedSeq == SeqUnknown {
		if !state.lastAdvance.IsZero() && e.now().Sub(state.lastAdvance) < e.advanceDebounce {
			state.unlock()
			return nil, ErrConflict
		}
	} else if expectedSeq != state.advanceSeq {
		state.unlock()
		return nil, ErrConflict
	}

	next, touched := e.advanceLocked(state, false)
	var snapshot *models.Track
	if next != nil {
		copied := *next
		snapshot = &copied
	}
	persist := e.snapshotPlaybackLocked(state)
	state.unlock()

	metrics.PlaybackAdvances.WithLabelValues(spaceID.String(), "host").Inc()
	e.persistPlayback(persist)
	e.persistTracks(touched)
	return snapshot, nil
}

// advanceLocked commits one cursor move under the space lock. The current
// active track, if any, is flagged played; the ranked head, if any, becomes
// active. Repeated calls on an empty queue stay idle. Returns the new active
// track and snapshots of every track mutated by the move.
func (e *Engine) advanceLocked(state *spaceState, paid bool) (*models.Track, []models.Track) {
	var touched []models.Track
	if state.activeTrack != nil {
		if prev, ok := state.tracks[*state.activeTrack]; ok {
			prev.Played = true
			prev.UpdatedAt = e.now()
			touched = append(touched, *prev)
		}
	}

	state.advanceSeq++
	state.lastAdvance = e.now()

	ranked := state.rankedLocked()
	if len(ranked) == 0 {
		state.activeTrack = nil
		state.startedAt = nil
		e.publish(state, EventPlaybackAdvanced, PlaybackAdvancedPayload{
			Track:      nil,
			AdvanceSeq: state.advanceSeq,
			Paid:       paid,
		})
		return nil, touched
	}

	head := state.tracks[ranked[0].ID]
	now := e.now()
	headID := head.ID
	state.activeTrack = &headID
	state.startedAt = &now
	head.UpdatedAt = now

	snapshot := *head
	touched = append(touched, snapshot)
	e.publish(state, EventPlaybackAdvanced, PlaybackAdvancedPayload{
		Track:      &snapshot,
		AdvanceSeq: state.advanceSeq,
		Paid:       paid,
	})
	return head, touched
}

func (e *Engine) snapshotPlaybackLocked(state *spaceState) models.PlaybackState {
	out := models.PlaybackState{
		SpaceID:    state.space.ID,
		AdvanceSeq: state.advanceSeq,
		UpdatedAt:  e.now(),
	}
	if state.activeTrack != nil {
		id := *state.activeTrack
		out.ActiveTrackID = &id
	}
	if state.startedAt != nil {
		t := *state.startedAt
		out.StartedAt = &t
	}
	return out
}
