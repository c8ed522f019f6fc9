package transcript

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRow is the postgres representation of a MessageRecord.
type MessageRow struct {
	ID                uint64              `gorm:"primaryKey;autoIncrement:false"`
	ChannelID         string              `gorm:"type:varchar(32);not null;index"`
	AuthorID          string              `gorm:"type:varchar(32);not null"`
	AuthorDisplayName string              `gorm:"not null;default:''"`
	AuthorAvatarRef   string              `gorm:"type:text;not null;default:''"`
	AuthorRoleName    string              `gorm:"not null;default:''"`
	AuthorRoleColor   string              `gorm:"type:varchar(9);not null;default:''"`
	Body              string              `gorm:"type:text;not null;default:''"`
	CreatedAt         time.Time           `gorm:"autoCreateTime:false;not null"`
	EditedAt          *time.Time
	ParentID          *uint64
	Attachments       []Attachment        `gorm:"serializer:json;type:jsonb"`
	Reactions         map[string]Reaction `gorm:"serializer:json;type:jsonb"`
	Tombstoned        bool                `gorm:"not null;default:false;index"`
}

func (MessageRow) TableName() string {
	return "transcript_messages"
}

func rowFromRecord(m MessageRecord) MessageRow {
	row := MessageRow{
		ID:                uint64(m.ID),
		ChannelID:         m.ChannelID,
		AuthorID:          m.AuthorID,
		AuthorDisplayName: m.AuthorDisplayName,
		AuthorAvatarRef:   m.AuthorAvatarRef,
		AuthorRoleName:    m.AuthorRoleName,
		AuthorRoleColor:   m.AuthorRoleColor,
		Body:              m.Body,
		CreatedAt:         m.CreatedAt,
		EditedAt:          m.EditedAt,
		Attachments:       m.Attachments,
		Reactions:         m.Reactions,
		Tombstoned:        m.Tombstoned,
	}
	if m.ParentID != nil {
		p := uint64(*m.ParentID)
		row.ParentID = &p
	}
	return row
}

func (r MessageRow) record() MessageRecord {
	m := MessageRecord{
		ID:                Snowflake(r.ID),
		ChannelID:         r.ChannelID,
		AuthorID:          r.AuthorID,
		AuthorDisplayName: r.AuthorDisplayName,
		AuthorAvatarRef:   r.AuthorAvatarRef,
		AuthorRoleName:    r.AuthorRoleName,
		AuthorRoleColor:   r.AuthorRoleColor,
		Body:              r.Body,
		CreatedAt:         r.CreatedAt,
		EditedAt:          r.EditedAt,
		Attachments:       r.Attachments,
		Reactions:         r.Reactions,
		Tombstoned:        r.Tombstoned,
	}
	if r.ParentID != nil {
		p := Snowflake(*r.ParentID)
		m.ParentID = &p
	}
	return m
}

// Repository persists the transcript of one channel in postgres.
type Repository interface {
	Persister
	Count(ctx context.Context) (int64, error)
}

type repository struct {
	db        *gorm.DB
	channelID string
	batchSize int
}

func NewRepository(db *gorm.DB, channelID string) Repository {
	return &repository{db: db, channelID: channelID, batchSize: 200}
}

func (r *repository) Save(ctx context.Context, records []MessageRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]MessageRow, 0, len(records))
	for _, rec := range records {
		row := rowFromRecord(rec)
		if row.ChannelID == "" {
			row.ChannelID = r.channelID
		}
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).CreateInBatches(rows, r.batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert transcript rows: %w", err)
	}
	return nil
}

func (r *repository) Load(ctx context.Context) ([]MessageRecord, error) {
	var rows []MessageRow
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", r.channelID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript rows: %w", err)
	}
	out := make([]MessageRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&MessageRow{}).Where("channel_id = ?", r.channelID).Count(&n).Error
	return n, err
}
