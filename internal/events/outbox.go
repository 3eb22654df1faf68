package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event describes a raffle event to store in the outbox.
type Event struct {
	RaffleID  snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// OutboxEvent is the persisted outbox row.
type OutboxEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	RaffleID  snowflake.ID      `gorm:"not null;index"`
	EventType string            `gorm:"type:text;not null"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb"`
	DedupeKey *string           `gorm:"type:text;uniqueIndex"`
	Published bool              `gorm:"not null;default:false"`
	CreatedAt time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "raffle_events" }

// Outbox inserts raffle events into the raffle_events table.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event inside an existing transaction so the event
// commits or aborts with its source mutation.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.RaffleID == 0 {
		return errors.New("invalid_raffle_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	row := OutboxEvent{
		ID:        o.genID.Generate(),
		RaffleID:  event.RaffleID,
		EventType: name,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if dedupe := strings.TrimSpace(event.DedupeKey); dedupe != "" {
		row.DedupeKey = &dedupe
	}

	// Dedupe-keyed retries land on the unique index and are dropped, so a
	// replayed draw cannot double-publish.
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}
