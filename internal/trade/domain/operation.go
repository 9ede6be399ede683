package domain

// Operation 需要授权的交易操作
type Operation string

const (
	OpCreateTrade                  Operation = "CREATE_TRADE"
	OpAmendTrade                   Operation = "AMEND_TRADE"
	OpGetAllTrades                 Operation = "GET_ALL_TRADES"
	OpTerminateTrade               Operation = "TERMINATE_TRADE"
	OpCancelTrade                  Operation = "CANCEL_TRADE"
	OpUpdateSettlementInstructions Operation = "UPDATE_SETTLEMENT_INSTRUCTIONS"
)

var privileges = map[Operation]string{
	OpCreateTrade:                  "BOOK_TRADE",
	OpAmendTrade:                   "AMEND_TRADE",
	OpGetAllTrades:                 "READ_TRADE",
	OpTerminateTrade:               "TERMINATE_TRADE",
	OpCancelTrade:                  "CANCEL_TRADE",
	OpUpdateSettlementInstructions: "AMEND_TRADE",
}

// Privilege 操作所需权限，未映射时返回 false
func (o Operation) Privilege() (string, bool) {
	p, ok := privileges[o]
	return p, ok
}

// IsBulkRead 批量读取不做交易归属检查
func (o Operation) IsBulkRead() bool {
	return o == OpGetAllTrades
}
