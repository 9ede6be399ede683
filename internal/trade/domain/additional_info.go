package domain

import "time"

const (
	EntityTypeTrade                 = "TRADE"
	FieldNameSettlementInstructions = "SETTLEMENT_INSTRUCTIONS"
	FieldTypeString                 = "STRING"
)

// AdditionalInfo 实体扩展属性，按 (EntityType, EntityID, FieldName) 定位，Active=false 为软删除
type AdditionalInfo struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	EntityType       string    `gorm:"column:entity_type;type:varchar(32);not null;index:idx_additional_info_key,priority:1" json:"entityType"`
	EntityID         int64     `gorm:"column:entity_id;not null;index:idx_additional_info_key,priority:2" json:"entityId"`
	FieldName        string    `gorm:"column:field_name;type:varchar(64);not null;index:idx_additional_info_key,priority:3" json:"fieldName"`
	FieldValue       string    `gorm:"column:field_value;type:varchar(500)" json:"fieldValue"`
	FieldType        string    `gorm:"column:field_type;type:varchar(16)" json:"fieldType"`
	Active           bool      `gorm:"column:active;not null" json:"active"`
	Version          int       `gorm:"column:version;not null" json:"version"`
	CreatedDate      time.Time `gorm:"column:created_date" json:"createdDate"`
	LastModifiedDate time.Time `gorm:"column:last_modified_date" json:"lastModifiedDate"`
}

func (AdditionalInfo) TableName() string { return "additional_info" }

// NewSettlementInstructions 交易结算指令
func NewSettlementInstructions(tradeID int64, text string, now time.Time) *AdditionalInfo {
	return &AdditionalInfo{
		EntityType:       EntityTypeTrade,
		EntityID:         tradeID,
		FieldName:        FieldNameSettlementInstructions,
		FieldValue:       text,
		FieldType:        FieldTypeString,
		Active:           true,
		Version:          1,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
}
