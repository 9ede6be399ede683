package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wyfcoding/swaptrading/internal/user/domain"
	"gorm.io/gorm"
)

type userRepository struct{ db *gorm.DB }

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.UserProfile{}, &domain.ApplicationUser{}, &domain.Privilege{}, &domain.UserPrivilege{})
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*domain.ApplicationUser, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *userRepository) FindByLoginID(ctx context.Context, loginID string) (*domain.ApplicationUser, error) {
	return r.findUser(ctx, "login_id = ?", loginID)
}

func (r *userRepository) FindByFirstName(ctx context.Context, firstName string) (*domain.ApplicationUser, error) {
	return r.findUser(ctx, "LOWER(first_name) = ?", strings.ToLower(firstName))
}

func (r *userRepository) FindPrivilegeByName(ctx context.Context, name string) (*domain.Privilege, error) {
	var p domain.Privilege
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find privilege %s: %w", name, err)
	}
	return &p, nil
}

func (r *userRepository) HasPrivilege(ctx context.Context, userID, privilegeID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.UserPrivilege{}).
		Where("user_id = ? AND privilege_id = ?", userID, privilegeID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check privilege: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) findUser(ctx context.Context, query string, arg any) (*domain.ApplicationUser, error) {
	var u domain.ApplicationUser
	err := r.db.WithContext(ctx).Preload("UserProfile").Where(query, arg).Order("id").First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}
