package mysql

import (
	"context"
	"strings"
	"time"

	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	"github.com/wyfcoding/swaptrading/pkg/db"
	"gorm.io/gorm"
)

type additionalInfoRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAdditionalInfoRepository 创建扩展属性仓储
func NewAdditionalInfoRepository(gdb *gorm.DB) domain.AdditionalInfoRepository {
	return &additionalInfoRepository{db: gdb, now: time.Now}
}

func keyed(q *gorm.DB, entityType string, entityID int64, fieldName string) *gorm.DB {
	return q.Model(&domain.AdditionalInfo{}).
		Where("entity_type = ? AND entity_id = ? AND field_name = ?", entityType, entityID, fieldName)
}

// Add 旧活跃记录失效，新记录版本号为历史最大版本加一
func (r *additionalInfoRepository) Add(ctx context.Context, info *domain.AdditionalInfo) error {
	conn := db.Conn(ctx, r.db)

	var maxVersion int
	if err := keyed(conn, info.EntityType, info.EntityID, info.FieldName).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error; err != nil {
		return err
	}
	if err := r.deactivate(conn, info.EntityType, info.EntityID, info.FieldName, info.LastModifiedDate); err != nil {
		return err
	}

	info.ID = 0
	info.Active = true
	info.Version = maxVersion + 1
	return conn.Create(info).Error
}

func (r *additionalInfoRepository) Remove(ctx context.Context, entityType string, entityID int64, fieldName string) error {
	return r.deactivate(db.Conn(ctx, r.db), entityType, entityID, fieldName, r.now())
}

func (r *additionalInfoRepository) deactivate(conn *gorm.DB, entityType string, entityID int64, fieldName string, at time.Time) error {
	if at.IsZero() {
		at = r.now()
	}
	return keyed(conn, entityType, entityID, fieldName).
		Where("active = ?", true).
		Updates(map[string]any{"active": false, "last_modified_date": at}).Error
}

func (r *additionalInfoRepository) ListFor(ctx context.Context, entityType string, entityID int64) ([]*domain.AdditionalInfo, error) {
	return r.ListForEntities(ctx, entityType, []int64{entityID})
}

func (r *additionalInfoRepository) ListForEntities(ctx context.Context, entityType string, entityIDs []int64) ([]*domain.AdditionalInfo, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	var list []*domain.AdditionalInfo
	err := db.Conn(ctx, r.db).
		Where("entity_type = ? AND entity_id IN ? AND active = ?", entityType, entityIDs, true).
		Order("entity_id, field_name").
		Find(&list).Error
	return list, err
}

func (r *additionalInfoRepository) FindActiveByFieldValue(ctx context.Context, entityType, fieldName, text string) ([]*domain.AdditionalInfo, error) {
	var list []*domain.AdditionalInfo
	err := db.Conn(ctx, r.db).
		Where("entity_type = ? AND field_name = ? AND active = ?", entityType, fieldName, true).
		Where("LOWER(field_value) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(text))+"%").
		Order("entity_id").
		Find(&list).Error
	return list, err
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
