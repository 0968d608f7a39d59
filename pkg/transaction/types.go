package transaction

import "wallet-swap/pkg/types"

// Status is the on-chain state of a transaction
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// IsFinal reports whether the status is terminal
func (s Status) IsFinal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// QueueStatus tracks an off-chain order through submission
type QueueStatus string

const (
	QueueWaiting          QueueStatus = "waiting"
	QueueSubmitted        QueueStatus = "submitted"
	QueueSubmissionFailed QueueStatus = "submission_failed"
	QueueApprovalFailed   QueueStatus = "approval_failed"
	QueueWrapFailed       QueueStatus = "wrap_failed"
	QueueStale            QueueStatus = "stale"
)

// IsTerminal reports whether no further queue transitions are expected
func (q QueueStatus) IsTerminal() bool {
	return q != "" && q != QueueWaiting
}

// IsFailure reports whether the order ended without reaching the order service
func (q QueueStatus) IsFailure() bool {
	switch q {
	case QueueSubmissionFailed, QueueApprovalFailed, QueueWrapFailed, QueueStale:
		return true
	}
	return false
}

// canTransition allows Waiting -> anything and the optimistic revert Submitted -> SubmissionFailed
func canTransition(from, to QueueStatus) bool {
	if from == to || from == "" || from == QueueWaiting {
		return true
	}
	return from == QueueSubmitted && to == QueueSubmissionFailed
}

// Type tags a TypeInfo variant
type Type string

const (
	TypeApprove   Type = "approve"
	TypeSwap      Type = "swap"
	TypeWrap      Type = "wrap"
	TypeSend      Type = "send"
	TypeReceive   Type = "receive"
	TypeUnknown   Type = "unknown"
	TypeWCConfirm Type = "wc-confirm"
)

// AssetType distinguishes fungible from NFT transfers
type AssetType string

const (
	AssetCurrency AssetType = "currency"
	AssetERC721   AssetType = "erc-721"
	AssetERC1155  AssetType = "erc-1155"
)

// TypeInfo describes the semantic action of a transaction. The set of
// variants is closed; consumers switch over the concrete types.
type TypeInfo interface {
	Type() Type
	isTypeInfo()
}

type ApproveInfo struct {
	TokenAddress   string `json:"tokenAddress"`
	Spender        string `json:"spender"`
	ApprovalAmount string `json:"approvalAmount,omitempty"`
	SwapTxID       string `json:"swapTxId,omitempty"`
}

type SwapInfo struct {
	TradeType                       types.TradeType `json:"tradeType"`
	InputCurrencyID                 string          `json:"inputCurrencyId"`
	OutputCurrencyID                string          `json:"outputCurrencyId"`
	InputCurrencyAmountRaw          string          `json:"inputCurrencyAmountRaw"`
	ExpectedOutputCurrencyAmountRaw string          `json:"expectedOutputCurrencyAmountRaw"`
	MinimumOutputCurrencyAmountRaw  string          `json:"minimumOutputCurrencyAmountRaw,omitempty"`
	MaximumInputCurrencyAmountRaw   string          `json:"maximumInputCurrencyAmountRaw,omitempty"`
	QuoteID                         string          `json:"quoteId,omitempty"`
}

type WrapInfo struct {
	Unwrapped         bool   `json:"unwrapped"`
	CurrencyAmountRaw string `json:"currencyAmountRaw"`
	SwapTxID          string `json:"swapTxId,omitempty"`
}

type SendInfo struct {
	AssetType         AssetType `json:"assetType"`
	Recipient         string    `json:"recipient"`
	TokenAddress      string    `json:"tokenAddress"`
	CurrencyAmountRaw string    `json:"currencyAmountRaw,omitempty"`
	TokenID           string    `json:"tokenId,omitempty"`
}

type ReceiveInfo struct {
	AssetType         AssetType `json:"assetType"`
	Sender            string    `json:"sender"`
	TokenAddress      string    `json:"tokenAddress"`
	CurrencyAmountRaw string    `json:"currencyAmountRaw,omitempty"`
	TokenID           string    `json:"tokenId,omitempty"`
}

// UnknownInfo is an unrecognized contract interaction. It is a valid
// classification, not an error.
type UnknownInfo struct {
	TokenAddress string `json:"tokenAddress,omitempty"`
	DappName     string `json:"dappName,omitempty"`
}

type WCConfirmInfo struct {
	DappName string `json:"dappName"`
	DappURL  string `json:"dappUrl,omitempty"`
}

func (ApproveInfo) Type() Type   { return TypeApprove }
func (SwapInfo) Type() Type      { return TypeSwap }
func (WrapInfo) Type() Type      { return TypeWrap }
func (SendInfo) Type() Type      { return TypeSend }
func (ReceiveInfo) Type() Type   { return TypeReceive }
func (UnknownInfo) Type() Type   { return TypeUnknown }
func (WCConfirmInfo) Type() Type { return TypeWCConfirm }

func (ApproveInfo) isTypeInfo()   {}
func (SwapInfo) isTypeInfo()      {}
func (WrapInfo) isTypeInfo()      {}
func (SendInfo) isTypeInfo()      {}
func (ReceiveInfo) isTypeInfo()   {}
func (UnknownInfo) isTypeInfo()   {}
func (WCConfirmInfo) isTypeInfo() {}

// ChainedSwapTxID returns the id of the swap an approval or wrap was submitted for
func ChainedSwapTxID(info TypeInfo) string {
	switch v := info.(type) {
	case ApproveInfo:
		return v.SwapTxID
	case WrapInfo:
		return v.SwapTxID
	}
	return ""
}
