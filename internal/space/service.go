package space

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/space-queue-system/internal/engine"
	"github.com/space-queue-system/pkg/database"
	"github.com/space-queue-system/pkg/models"
)

const (
	spaceKeyPrefix = "space:"
	codeLength     = 6
	cacheTTL       = 24 * time.Hour
)

type Service struct {
	db     *database.MySQLDB
	redis  redis.Cmdable
	engine *engine.Engine
}

func NewService(db *database.MySQLDB, redisClient redis.Cmdable, eng *engine.Engine) *Service {
	return &Service{
		db:     db,
		redis:  redisClient,
		engine: eng,
	}
}

// CreateSpace registers a new space with the caller as its immutable host.
func (s *Service) CreateSpace(ctx context.Context, hostID string, name string) (*models.Space, error) {
	host, err := uuid.Parse(hostID)
	if err != nil {
		return nil, fmt.Errorf("invalid host id: %w", err)
	}

	space := &models.Space{
		ID:        uuid.New(),
		Code:      generateSpaceCode(),
		HostID:    host,
		Name:      name,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.db.CreateSpace(space); err != nil {
		return nil, fmt.Errorf("failed to create space: %w", err)
	}

	s.engine.RegisterSpace(*space)
	s.cacheSpace(ctx, space)
	return space, nil
}

func (s *Service) GetSpace(ctx context.Context, spaceID string) (*models.Space, error) {
	// Try cache first
	key := fmt.Sprintf("%s%s", spaceKeyPrefix, spaceID)
	spaceJSON, err := s.redis.Get(ctx, key).Bytes()
	if err == nil {
		var space models.Space
		if err := json.Unmarshal(spaceJSON, &space); err == nil {
			return &space, nil
		}
	}

	// Fallback to database
	space, err := s.db.GetSpaceByID(spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}

	s.cacheSpace(ctx, space)
	return space, nil
}

func (s *Service) GetSpaceByCode(ctx context.Context, code string) (*models.Space, error) {
	space, err := s.db.GetSpaceByCode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}

	s.cacheSpace(ctx, space)
	return space, nil
}

func (s *Service) cacheSpace(ctx context.Context, space *models.Space) {
	spaceJSON, err := json.Marshal(space)
	if err != nil {
		log.Printf("Warning: failed to marshal space for cache: %v", err)
		return
	}
	key := fmt.Sprintf("%s%s", spaceKeyPrefix, space.ID)
	if err := s.redis.Set(ctx, key, spaceJSON, cacheTTL).Err(); err != nil {
		log.Printf("Warning: failed to cache space: %v", err)
	}
}

// SyncState is the full-state resync a client performs after connecting or
// reconnecting, instead of relying on event gap-filling.
type SyncState struct {
	SpaceName   string         `json:"space_name"`
	Queue       []models.Track `json:"queue"`
	ActiveTrack *models.Track  `json:"active_track"`
	StartedAt   *time.Time     `json:"started_at"`
	AdvanceSeq  uint64         `json:"advance_seq"`
}

func (s *Service) Sync(ctx context.Context, spaceID string) (*SyncState, error) {
	id, err := uuid.Parse(spaceID)
	if err != nil {
		return nil, fmt.Errorf("invalid space id: %w", err)
	}

	space, err := s.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	queue, err := s.engine.RankedView(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	active, startedAt, advanceSeq, err := s.engine.Playback(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get playback state: %w", err)
	}

	return &SyncState{
		SpaceName:   space.Name,
		Queue:       queue,
		ActiveTrack: active,
		StartedAt:   startedAt,
		AdvanceSeq:  advanceSeq,
	}, nil
}

func generateSpaceCode() string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = charset[rand.Intn(len(charset))]
	}
	return string(code)
}
