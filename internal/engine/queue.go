package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/space-queue-system/pkg/metrics"
	"github.com/space-queue-system/pkg/models"
)

// Submit resolves trackRef and appends a new pending track with score 0.
// Duplicate submissions of the same reference create independent tracks;
// votes apply per entry, not per reference.
func (e *Engine) Submit(ctx context.Context, spaceID, submitter uuid.UUID, trackRef string) (*models.Track, error) {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	// Resolution is network I/O; do it before taking the space lock.
	resolved, err := e.resolver.Resolve(ctx, trackRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", trackRef, ErrInvalidReference)
	}

	if err := state.lock(ctx); err != nil {
		return nil, err
	}

	if !state.space.Active {
		state.unlock()
		return nil, ErrSpaceInactive
	}
	if state.pendingCount() >= e.maxQueueLen {
		state.unlock()
		return nil, ErrQueueFull
	}

	now := e.now()
	track := &models.Track{
		ID:          uuid.New(),
		SpaceID:     spaceID,
		SubmitterID: submitter,
		ExtractedID: resolved.ExtractedID,
		URL:         trackRef,
		Title:       resolved.Title,
		SmallImg:    resolved.SmallImg,
		BigImg:      resolved.BigImg,
		DurationMS:  resolved.DurationMS,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	state.tracks[track.ID] = track

	snapshot := *track
	e.publish(state, EventTrackAdded, TrackAddedPayload{Track: snapshot})
	state.unlock()

	metrics.TracksSubmitted.WithLabelValues(spaceID.String()).Inc()
	e.persistTrack(snapshot)
	return &snapshot, nil
}

// Remove flags a track removed. Host only. Removing the active track leaves
// PlaybackState alone; the track just stops being reachable as "next".
func (e *Engine) Remove(ctx context.Context, spaceID, actor, trackID uuid.UUID) error {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return err
	}

	if err := state.lock(ctx); err != nil {
		return err
	}

	if actor != state.space.HostID {
		state.unlock()
		return ErrForbidden
	}
	track, ok := state.tracks[trackID]
	if !ok || track.Removed {
		state.unlock()
		return ErrTrackNotFound
	}

	track.Removed = true
	track.UpdatedAt = e.now()
	snapshot := *track
	e.publish(state, EventTrackRemoved, TrackRemovedPayload{TrackID: trackID})
	state.unlock()

	e.persistTrack(snapshot)
	return nil
}

// Clear removes every pending (non-active, non-played) track in one critical
// section. Host only. PlaybackState is untouched.
func (e *Engine) Clear(ctx context.Context, spaceID, actor uuid.UUID) error {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return err
	}

	if err := state.lock(ctx); err != nil {
		return err
	}

	if actor != state.space.HostID {
		state.unlock()
		return ErrForbidden
	}

	now := e.now()
	var cleared []models.Track
	for _, track := range state.tracks {
		if track.Removed || track.Played || state.isActive(track.ID) {
			continue
		}
		track.Removed = true
		track.UpdatedAt = now
		cleared = append(cleared, *track)
	}
	e.publish(state, EventQueueCleared, QueueClearedPayload{ClearedBy: actor})
	state.unlock()

	e.persistTracks(cleared)
	return nil
}

// RankedView returns the pending queue ordered by score descending, ties
// broken by earliest creation time, then by id so equal timestamps still
// order deterministically. Computed from authoritative state on every read.
func (e *Engine) RankedView(ctx context.Context, spaceID uuid.UUID) ([]models.Track, error) {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	if err := state.lock(ctx); err != nil {
		return nil, err
	}
	view := state.rankedLocked()
	state.unlock()
	return view, nil
}

func (s *spaceState) rankedLocked() []models.Track {
	view := make([]models.Track, 0, len(s.tracks))
	for _, track := range s.tracks {
		if track.Removed || track.Played || s.isActive(track.ID) {
			continue
		}
		view = append(view, *track)
	}
	sort.Slice(view, func(i, j int) bool {
		if view[i].Score != view[j].Score {
			return view[i].Score > view[j].Score
		}
		if !view[i].CreatedAt.Equal(view[j].CreatedAt) {
			return view[i].CreatedAt.Before(view[j].CreatedAt)
		}
		return view[i].ID.String() < view[j].ID.String()
	})
	return view
}

func (s *spaceState) pendingCount() int {
	n := 0
	for _, track := range s.tracks {
		if track.Removed || track.Played || s.isActive(track.ID) {
			continue
		}
		n++
	}
	return n
}

func (s *spaceState) isActive(trackID uuid.UUID) bool {
	return s.activeTrack != nil && *s.activeTrack == trackID
}

// Playback returns a consistent snapshot of the space's playback cursor.
func (e *Engine) Playback(ctx context.Context, spaceID uuid.UUID) (*models.Track, *time.Time, uint64, error) {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return nil, nil, 0, err
	}

	if err := state.lock(ctx); err != nil {
		return nil, nil, 0, err
	}
	defer state.unlock()

	var active *models.Track
	if state.activeTrack != nil {
		if track, ok := state.tracks[*state.activeTrack]; ok {
			snapshot := *track
			active = &snapshot
		}
	}
	var started *time.Time
	if state.startedAt != nil {
		t := *state.startedAt
		started = &t
	}
	return active, started, state.advanceSeq, nil
}
