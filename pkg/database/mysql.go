package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/space-queue-system/pkg/models"
)

type MySQLDB struct {
	*gorm.DB
}

func NewMySQLDB(host, port, user, password, dbname string) (*MySQLDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto-migrate the schema
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLDB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	return db.AutoMigrate(
		&models.User{},
		&models.Space{},
		&models.Track{},
		&models.Vote{},
		&models.PlaybackState{},
	)
}

// User operations
func (db *MySQLDB) CreateUser(user *models.User) error {
	return db.Create(user).Error
}

func (db *MySQLDB) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *MySQLDB) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Space operations
func (db *MySQLDB) CreateSpace(space *models.Space) error {
	return db.Create(space).Error
}

func (db *MySQLDB) GetSpaceByID(id string) (*models.Space, error) {
	var space models.Space
	if err := db.First(&space, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

func (db *MySQLDB) GetSpaceByCode(code string) (*models.Space, error) {
	var space models.Space
	if err := db.First(&space, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

func (db *MySQLDB) UpdateSpace(space *models.Space) error {
	return db.Save(space).Error
}

// LoadSpace rehydrates a space's full queue state after a restart: the space
// row, every track (played and removed ones included, they are audit
// history), the vote ledger for those tracks, and the playback cursor.
func (db *MySQLDB) LoadSpace(ctx context.Context, spaceID uuid.UUID) (*models.Space, []*models.Track, []*models.Vote, *models.PlaybackState, error) {
	var space models.Space
	if err := db.WithContext(ctx).First(&space, "id = ?", spaceID).Error; err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load space: %w", err)
	}

	var tracks []*models.Track
	if err := db.WithContext(ctx).Where("space_id = ?", spaceID).
		Order("created_at ASC").
		Find(&tracks).Error; err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	var votes []*models.Vote
	if len(tracks) > 0 {
		ids := make([]uuid.UUID, len(tracks))
		for i, t := range tracks {
			ids[i] = t.ID
		}
		if err := db.WithContext(ctx).Where("track_id IN ?", ids).Find(&votes).Error; err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to load votes: %w", err)
		}
	}

	var playback models.PlaybackState
	err := db.WithContext(ctx).First(&playback, "space_id = ?", spaceID).Error
	if err == gorm.ErrRecordNotFound {
		return &space, tracks, votes, nil, nil
	}
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load playback state: %w", err)
	}
	return &space, tracks, votes, &playback, nil
}

// Track operations
func (db *MySQLDB) SaveTrack(ctx context.Context, track *models.Track) error {
	return db.WithContext(ctx).Save(track).Error
}

func (db *MySQLDB) SaveTracks(ctx context.Context, tracks []*models.Track) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, track := range tracks {
			if err := tx.Save(track).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Vote operations
func (db *MySQLDB) SaveVote(ctx context.Context, vote *models.Vote) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "track_id"}, {Name: "voter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(vote).Error
}

func (db *MySQLDB) GetVotesForTrack(trackID string) (int, error) {
	var sum struct {
		Total int
	}

	if err := db.Model(&models.Vote{}).
		Select("COALESCE(SUM(value), 0) as total").
		Where("track_id = ?", trackID).
		Scan(&sum).Error; err != nil {
		return 0, err
	}

	return sum.Total, nil
}

// Playback operations
func (db *MySQLDB) SavePlayback(ctx context.Context, state *models.PlaybackState) error {
	return db.WithContext(ctx).Save(state).Error
}
