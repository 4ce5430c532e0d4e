package ws

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Command kinds accepted from clients. Each maps to exactly one engine call.
const (
	CmdAddTrack       = "add-track"
	CmdCastVote       = "cast-vote"
	CmdRemoveTrack    = "remove-track"
	CmdEmptyQueue     = "empty-queue"
	CmdAdvance        = "advance"
	CmdPrivilegedPlay = "privileged-play"
)

// Command is the inbound message envelope. The space is implied by the
// connection's subscription and the actor by its authenticated identity, so
// neither is trusted from the payload.
type Command struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type AddTrackData struct {
	URL string `json:"url"`
}

type CastVoteData struct {
	TrackID uuid.UUID `json:"track_id"`
	Vote    string    `json:"vote"` // "upvote" or "downvote"
}

type RemoveTrackData struct {
	TrackID uuid.UUID `json:"track_id"`
}

type AdvanceData struct {
	// AdvanceSeq is the advance sequence the client last observed. Omitted
	// means the client does not track it and the server debounces by time.
	AdvanceSeq *uint64 `json:"advance_seq,omitempty"`
}

type PrivilegedPlayData struct {
	URL          string `json:"url"`
	PaymentToken string `json:"payment_token"`
}

// ErrorPayload is sent only to the connection whose command failed.
type ErrorPayload struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

func ParseCommand(raw []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	if cmd.Kind == "" {
		return nil, fmt.Errorf("command kind is required")
	}
	if len(cmd.Data) == 0 {
		// Commands with all-optional payloads may omit data entirely.
		cmd.Data = json.RawMessage("{}")
	}
	return &cmd, nil
}
