package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sequenceRow struct {
	Name      string `gorm:"column:name;type:varchar(64);primaryKey"`
	LastValue int64  `gorm:"column:last_value;not null"`
}

func (sequenceRow) TableName() string { return "trade_id_sequences" }

// Sequence 基于数据库行的交易编号序列，每次取号使用独立事务
type Sequence struct {
	db    *gorm.DB
	name  string
	start int64
}

// NewSequence 创建序列，首个编号为 start
func NewSequence(gdb *gorm.DB, name string, start int64) *Sequence {
	return &Sequence{db: gdb, name: name, start: start}
}

func (s *Sequence) Next(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&sequenceRow{Name: s.name, LastValue: s.start - 1}).Error; err != nil {
			return err
		}
		res := tx.Model(&sequenceRow{}).
			Where("name = ?", s.name).
			UpdateColumn("last_value", gorm.Expr("last_value + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("sequence %s not found", s.name)
		}
		return tx.Model(&sequenceRow{}).Select("last_value").Where("name = ?", s.name).Scan(&next).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", s.name, err)
	}
	return next, nil
}
