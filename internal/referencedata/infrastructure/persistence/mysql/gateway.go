package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"gorm.io/gorm"
)

// Gateway 基于 GORM 的参考数据查询
type Gateway struct {
	db *gorm.DB
}

// NewGateway 创建参考数据查询
func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Code{}, &domain.Book{}, &domain.Counterparty{})
}

func (g *Gateway) FindBook(ctx context.Context, ref domain.Ref) (*domain.Book, error) {
	var book domain.Book
	found, err := first(g.db.WithContext(ctx), ref, "book_name = ?", &book)
	if err != nil || !found {
		return nil, wrap("book", err)
	}
	return &book, nil
}

func (g *Gateway) FindCounterparty(ctx context.Context, ref domain.Ref) (*domain.Counterparty, error) {
	var cp domain.Counterparty
	found, err := first(g.db.WithContext(ctx), ref, "name = ?", &cp)
	if err != nil || !found {
		return nil, wrap("counterparty", err)
	}
	return &cp, nil
}

// FindCode 按名称精确匹配，未命中时再做大小写不敏感匹配
func (g *Gateway) FindCode(ctx context.Context, kind domain.Kind, ref domain.Ref) (*domain.Code, error) {
	var code domain.Code
	scoped := g.db.WithContext(ctx).Where("kind = ?", kind)

	found, err := first(scoped, ref, "name = ?", &code)
	if err != nil {
		return nil, wrap(string(kind), err)
	}
	if found {
		return &code, nil
	}
	if ref.Name == "" {
		return nil, nil
	}

	err = g.db.WithContext(ctx).
		Where("kind = ? AND LOWER(name) = LOWER(?)", kind, ref.Name).
		Order("id").
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(string(kind), err)
	}
	return &code, nil
}

func first(q *gorm.DB, ref domain.Ref, nameClause string, dest any) (bool, error) {
	switch {
	case ref.Name != "":
		q = q.Where(nameClause, ref.Name)
	case ref.ID != 0:
		q = q.Where("id = ?", ref.ID)
	default:
		return false, nil
	}

	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to find %s: %w", what, err)
}
