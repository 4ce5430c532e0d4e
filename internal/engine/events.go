package engine

import (
	"github.com/google/uuid"

	"github.com/space-queue-system/pkg/models"
)

type EventKind string

const (
	EventTrackAdded       EventKind = "track-added"
	EventVoteChanged      EventKind = "vote-changed"
	EventTrackRemoved     EventKind = "track-removed"
	EventQueueCleared     EventKind = "queue-cleared"
	EventPlaybackAdvanced EventKind = "playback-advanced"
)

// Event is the envelope broadcast to every connection subscribed to a space.
// Seq increases by one per committed mutation within a space, so consumers
// can detect the order events were committed in.
type Event struct {
	SpaceID uuid.UUID   `json:"space_id"`
	Kind    EventKind   `json:"kind"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type TrackAddedPayload struct {
	Track models.Track `json:"track"`
}

type VoteChangedPayload struct {
	TrackID  uuid.UUID `json:"track_id"`
	NewScore int       `json:"new_score"`
	VoterID  uuid.UUID `json:"voter_id"`
	Vote     string    `json:"vote"`
}

type TrackRemovedPayload struct {
	TrackID uuid.UUID `json:"track_id"`
}

type QueueClearedPayload struct {
	ClearedBy uuid.UUID `json:"cleared_by"`
}

type PlaybackAdvancedPayload struct {
	Track      *models.Track `json:"track"` // nil when the queue ran dry
	AdvanceSeq uint64        `json:"advance_seq"`
	Paid       bool          `json:"paid"` // true for an admission-approved promotion
}

// Publisher delivers committed events to subscribed connections. Publish is
// called while the space lock is held and must not block; implementations
// enqueue and return.
type Publisher interface {
	Publish(spaceID uuid.UUID, event Event)
}
