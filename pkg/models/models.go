package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email" gorm:"unique"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Space struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey"`
	Code        string     `json:"code" gorm:"unique"`
	HostID      uuid.UUID  `json:"host_id"`
	Name        string     `json:"name"`
	Active      bool       `json:"active"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Track struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey"`
	SpaceID     uuid.UUID `json:"space_id" gorm:"index"`
	SubmitterID uuid.UUID `json:"submitter_id"`
	ExtractedID string    `json:"extracted_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	SmallImg    string    `json:"small_img"`
	BigImg      string    `json:"big_img"`
	DurationMS  int       `json:"duration_ms"`
	Score       int       `json:"score"`
	Played      bool      `json:"played"`
	Removed     bool      `json:"removed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Vote struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	TrackID   uuid.UUID `json:"track_id" gorm:"index:idx_track_voter,unique"`
	VoterID   uuid.UUID `json:"voter_id" gorm:"index:idx_track_voter,unique"`
	Value     int       `json:"value"` // 1 for upvote, -1 for downvote
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PlaybackState struct {
	SpaceID       uuid.UUID  `json:"space_id" gorm:"primaryKey"`
	ActiveTrackID *uuid.UUID `json:"active_track_id"`
	StartedAt     *time.Time `json:"started_at"`
	AdvanceSeq    uint64     `json:"advance_seq"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
