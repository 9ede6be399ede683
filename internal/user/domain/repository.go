package domain

import "context"

// UserRepository 用户与权限查询，未找到时返回 nil, nil
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*ApplicationUser, error)
	FindByLoginID(ctx context.Context, loginID string) (*ApplicationUser, error)
	// FindByFirstName 按名匹配（大小写不敏感），返回第一个匹配用户
	FindByFirstName(ctx context.Context, firstName string) (*ApplicationUser, error)
	FindPrivilegeByName(ctx context.Context, name string) (*Privilege, error)
	HasPrivilege(ctx context.Context, userID, privilegeID uint) (bool, error)
}
