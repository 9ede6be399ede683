package application

import (
	"context"
	"log/slog"
	"strings"

	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	userdomain "github.com/wyfcoding/swaptrading/internal/user/domain"
)

// AuthorizationGate 操作授权：用户有效、具备操作权限，交易员/销售只能操作自己的交易。
// 任何查询失败都视为拒绝。
type AuthorizationGate struct {
	users  userdomain.UserRepository
	logger *slog.Logger
}

// NewAuthorizationGate 创建授权检查
func NewAuthorizationGate(users userdomain.UserRepository, logger *slog.Logger) *AuthorizationGate {
	return &AuthorizationGate{users: users, logger: logger}
}

// Authorize 判断 userID（登录名）能否对 trade 执行 op
func (g *AuthorizationGate) Authorize(ctx context.Context, userID string, op domain.Operation, trade *TradeDTO) bool {
	user, err := g.users.FindByLoginID(ctx, userID)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to load user for authorization", "user_id", userID, "error", err)
		return false
	}
	if user == nil || !user.Active {
		g.logger.InfoContext(ctx, "authorization denied: user missing or inactive", "user_id", userID, "operation", op)
		return false
	}

	privName, ok := op.Privilege()
	if !ok {
		return false
	}
	priv, err := g.users.FindPrivilegeByName(ctx, privName)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to load privilege", "privilege", privName, "error", err)
		return false
	}
	if priv == nil {
		return false
	}
	granted, err := g.users.HasPrivilege(ctx, user.ID, priv.ID)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to check privilege grant", "user_id", userID, "privilege", privName, "error", err)
		return false
	}
	if !granted {
		g.logger.InfoContext(ctx, "authorization denied: missing privilege", "user_id", userID, "operation", op)
		return false
	}

	if user.IsTraderSales() && !op.IsBulkRead() {
		return ownsTrade(user, op, trade)
	}
	return true
}

func ownsTrade(user *userdomain.ApplicationUser, op domain.Operation, trade *TradeDTO) bool {
	if op == domain.OpCreateTrade {
		return true
	}
	if trade == nil {
		return false
	}
	owner := strings.TrimSpace(trade.TraderUserName)
	return owner == "" || strings.EqualFold(owner, strings.TrimSpace(user.FirstName+" "+user.LastName))
}
