package store

import "time"

// Interaction is one captured exchange: the JSON-encoded conversation plus
// the model that produced it. ID is the upstream response id when one was
// observed, else a freshly minted UUID. Rows are never updated.
type Interaction struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Model        string    `gorm:"index" json:"model"`
	Conversation string    `gorm:"type:text" json:"conversation"`
	Timestamp    time.Time `gorm:"index;autoCreateTime" json:"timestamp"`
}

func (Interaction) TableName() string { return "interactions" }

// ConfirmedInteraction is an Interaction promoted by review. Confirming
// copies the row here and deletes the original in one transaction.
type ConfirmedInteraction struct {
	ID                 string    `gorm:"primaryKey" json:"id"`
	Model              string    `gorm:"index" json:"model"`
	Conversation       string    `gorm:"type:text" json:"conversation"`
	OriginalTimestamp  time.Time `json:"original_timestamp"`
	ConfirmedTimestamp time.Time `gorm:"autoCreateTime" json:"confirmed_timestamp"`
}

func (ConfirmedInteraction) TableName() string { return "confirmed_interactions" }
