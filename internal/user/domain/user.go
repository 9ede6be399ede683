// Package domain 用户与权限领域模型
package domain

import "strings"

// UserTypeTraderSales 交易员/销售用户类型，受交易归属限制
const UserTypeTraderSales = "TRADER_SALES"

// UserProfile 用户类型档案
type UserProfile struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserType string `gorm:"column:user_type;type:varchar(32);uniqueIndex;not null" json:"userType"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// ApplicationUser 系统用户
type ApplicationUser struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	FirstName     string       `gorm:"column:first_name;type:varchar(64);index" json:"firstName"`
	LastName      string       `gorm:"column:last_name;type:varchar(64)" json:"lastName"`
	LoginID       string       `gorm:"column:login_id;type:varchar(64);uniqueIndex;not null" json:"loginId"`
	Active        bool         `gorm:"column:active;not null" json:"active"`
	UserProfileID *uint        `gorm:"column:user_profile_id" json:"userProfileId,omitempty"`
	UserProfile   *UserProfile `gorm:"foreignKey:UserProfileID" json:"userProfile,omitempty"`
}

func (ApplicationUser) TableName() string { return "application_users" }

// DisplayName "名 姓"
func (u *ApplicationUser) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsTraderSales 用户类型是否为 TRADER_SALES（大小写不敏感）
func (u *ApplicationUser) IsTraderSales() bool {
	return u != nil && u.UserProfile != nil && strings.EqualFold(u.UserProfile.UserType, UserTypeTraderSales)
}

// Privilege 权限名称，如 BOOK_TRADE
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"column:name;type:varchar(64);uniqueIndex;not null" json:"name"`
}

func (Privilege) TableName() string { return "privileges" }

// UserPrivilege 用户与权限的授予关系
type UserPrivilege struct {
	UserID      uint `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	PrivilegeID uint `gorm:"column:privilege_id;primaryKey;autoIncrement:false"`
}

func (UserPrivilege) TableName() string { return "user_privileges" }
