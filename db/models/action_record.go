package models

// ActionRecord is the durable audit row for one proposed action. The
// (user_id, thread_id, action_key) tuple is unique: re-proposing a
// logically identical action updates the existing row in place instead of
// creating a duplicate. Status is one of pending/applied/declined/failed.
type ActionRecord struct {
	ID          uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      string  `gorm:"column:user_id;type:text;not null;uniqueIndex:uniq_user_thread_key,priority:1"`
	ThreadID    string  `gorm:"column:thread_id;type:text;not null;uniqueIndex:uniq_user_thread_key,priority:2;index:idx_thread_status_updated,priority:1"`
	ActionKey   string  `gorm:"column:action_key;type:text;not null;uniqueIndex:uniq_user_thread_key,priority:3"`
	ActionType  string  `gorm:"column:action_type;type:text;not null"`
	Status      string  `gorm:"column:status;type:text;not null;index:idx_thread_status_updated,priority:2"`
	Detail      string  `gorm:"column:detail;type:text"`
	PayloadJSON string  `gorm:"column:payload_json;type:text"`
	OrderID     int64   `gorm:"column:order_id"`
	OrderNumber string  `gorm:"column:order_number;type:text"`
	Error       *string `gorm:"column:error;type:text"`
	CreatedAt   int64   `gorm:"column:created_at;not null"`
	DecidedAt   *int64  `gorm:"column:decided_at"`
	AppliedAt   *int64  `gorm:"column:applied_at"`
	UpdatedAt   int64   `gorm:"column:updated_at;not null;index:idx_thread_status_updated,priority:3"`
}

func (ActionRecord) TableName() string { return "action_records" }
