package enum

// TxCondition market fill, manual override. Stored as-is in the transaction ledger.
type TxCondition string

const (
	TxConditionMarket   TxCondition = "M"
	TxConditionOverride TxCondition = "OD"
)

func (c TxCondition) IsAvailable() bool {
	return c == TxConditionMarket || c == TxConditionOverride
}
