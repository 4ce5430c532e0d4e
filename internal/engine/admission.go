package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/space-queue-system/pkg/metrics"
	"github.com/space-queue-system/pkg/models"
)

// admissionRequest is the ephemeral record of one paid promotion attempt.
// It is consumed exactly once and never persisted.
type admissionRequest struct {
	submitter    uuid.UUID
	trackRef     string
	paymentToken string
	consumed     bool
}

func (r *admissionRequest) consume() {
	r.consumed = true
}

// PrivilegedPlay is the one sanctioned violation of ranked order: a confirmed
// payment buys "play this track next". The payment is confirmed and the
// reference resolved before the space lock is taken; the submit and the
// cursor promotion then commit inside a single critical section so no
// concurrent submission can slip ahead of the paid track.
//
// Once the oracle confirms, the payment is considered consumed even if the
// rest fails; there is no refund path from this component, so failures after
// confirmation are logged for manual reconciliation.
func (e *Engine) PrivilegedPlay(ctx context.Context, spaceID, submitter uuid.UUID, trackRef, paymentToken string) (*models.Track, error) {
	state, err := e.stateFor(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	req := &admissionRequest{submitter: submitter, trackRef: trackRef, paymentToken: paymentToken}

	confirmed, err := e.oracle.Confirm(ctx, paymentToken)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", ErrPaymentUnconfirmed)
	}
	if !confirmed {
		return nil, ErrPaymentUnconfirmed
	}
	req.consume()

	resolved, err := e.resolver.Resolve(ctx, trackRef)
	if err != nil {
		log.Printf("Error: payment %s consumed but reference %q failed to resolve: %v", req.paymentToken, req.trackRef, err)
		return nil, fmt.Errorf("failed to resolve %q: %w", trackRef, ErrInvalidReference)
	}

	if err := state.lock(ctx); err != nil {
		log.Printf("Error: payment %s consumed but space %s was unavailable: %v", req.paymentToken, spaceID, err)
		return nil, err
	}

	if !state.space.Active {
		state.unlock()
		log.Printf("Error: payment %s consumed but space %s is inactive", req.paymentToken, spaceID)
		return nil, ErrSpaceInactive
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
	e.publish(state, EventTrackAdded, TrackAddedPayload{Track: *track})

	touched := e.promoteLocked(state, track)
	snapshot := *track
	persist := e.snapshotPlaybackLocked(state)
	state.unlock()

	metrics.PlaybackAdvances.WithLabelValues(spaceID.String(), "paid").Inc()
	e.persistPlayback(persist)
	e.persistTracks(touched)
	return &snapshot, nil
}

// promoteLocked sets the given track active regardless of its rank. The
// superseded active track, if any, is flagged played; pending tracks keep
// their positions.
func (e *Engine) promoteLocked(state *spaceState, track *models.Track) []models.Track {
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

	now := e.now()
	trackID := track.ID
	state.activeTrack = &trackID
	state.startedAt = &now
	track.UpdatedAt = now

	snapshot := *track
	touched = append(touched, snapshot)
	e.publish(state, EventPlaybackAdvanced, PlaybackAdvancedPayload{
		Track:      &snapshot,
		AdvanceSeq: state.advanceSeq,
		Paid:       true,
	})
	return touched
}
