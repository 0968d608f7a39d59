package notification

import (
	"fmt"
	"time"

	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

// StaleTransactionTime is how long after submission a finalized transaction is still announced
const StaleTransactionTime = 30 * time.Minute

// Kind groups notifications by how they are rendered
type Kind string

const (
	KindTransaction   Kind = "transaction"
	KindWalletConnect Kind = "wallet-connect"
	KindOrderFailed   Kind = "order-failed"
)

// Notification is a user-visible message about a finalized transaction or failed order
type Notification struct {
	Kind        Kind
	TxType      transaction.Type
	TxID        string
	ChainID     types.ChainID
	Address     string
	TxStatus    transaction.Status
	QueueStatus transaction.QueueStatus

	TokenAddress string
	Spender      string

	TradeType               types.TradeType
	InputCurrencyID         string
	OutputCurrencyID        string
	InputCurrencyAmountRaw  string
	OutputCurrencyAmountRaw string

	CurrencyAmountRaw string
	Unwrapped         bool

	AssetType transaction.AssetType
	TokenID   string
	Recipient string
	Sender    string

	DappName string
	DappURL  string
}

// ShouldSuppress reports whether rec finalized without needing its own notification:
// approvals and wraps chained to a swap, and anything finalized long after submission.
func ShouldSuppress(rec *transaction.Record, now time.Time) bool {
	if transaction.ChainedSwapTxID(rec.TypeInfo) != "" {
		return true
	}
	return rec.IsStale(now, StaleTransactionTime)
}

// Build creates the notification for a finalized record. ok is false when the
// variant carries too little data to show anything.
func Build(rec *transaction.Record) (n Notification, ok bool) {
	n = Notification{
		Kind:     KindTransaction,
		TxID:     rec.ID,
		ChainID:  rec.ChainID,
		Address:  rec.From,
		TxStatus: rec.Status,
	}
	if rec.TypeInfo != nil {
		n.TxType = rec.TypeInfo.Type()
	}

	switch info := rec.TypeInfo.(type) {
	case transaction.ApproveInfo:
		n.TokenAddress = info.TokenAddress
		n.Spender = info.Spender
	case transaction.SwapInfo:
		n.TradeType = info.TradeType
		n.InputCurrencyID = info.InputCurrencyID
		n.OutputCurrencyID = info.OutputCurrencyID
		n.InputCurrencyAmountRaw = info.InputCurrencyAmountRaw
		n.OutputCurrencyAmountRaw = info.ExpectedOutputCurrencyAmountRaw
	case transaction.WrapInfo:
		n.CurrencyAmountRaw = info.CurrencyAmountRaw
		n.Unwrapped = info.Unwrapped
	case transaction.SendInfo:
		n.AssetType = info.AssetType
		n.TokenAddress = info.TokenAddress
		n.Recipient = info.Recipient
		switch info.AssetType {
		case transaction.AssetCurrency:
			if info.CurrencyAmountRaw == "" {
				return n, false
			}
			n.CurrencyAmountRaw = info.CurrencyAmountRaw
		case transaction.AssetERC721, transaction.AssetERC1155:
			if info.TokenID == "" {
				return n, false
			}
			n.TokenID = info.TokenID
		default:
			return n, false
		}
	case transaction.ReceiveInfo:
		if rec.Status != transaction.StatusSuccess {
			return n, false
		}
		n.AssetType = info.AssetType
		n.TokenAddress = info.TokenAddress
		n.Sender = info.Sender
		n.CurrencyAmountRaw = info.CurrencyAmountRaw
		n.TokenID = info.TokenID
		if n.CurrencyAmountRaw == "" && n.TokenID == "" {
			return n, false
		}
	case transaction.WCConfirmInfo:
		n = Notification{
			Kind:     KindWalletConnect,
			TxType:   transaction.TypeWCConfirm,
			TxID:     rec.ID,
			ChainID:  rec.ChainID,
			DappName: info.DappName,
			DappURL:  info.DappURL,
		}
	case transaction.UnknownInfo:
		n.TokenAddress = info.TokenAddress
	default:
		return n, false
	}
	return n, true
}

// BuildOrderFailure creates the notification for an order that ended before reaching the order service
func BuildOrderFailure(rec *transaction.Record) (Notification, bool) {
	if !rec.IsOrder() || !rec.Order.QueueStatus.IsFailure() {
		return Notification{}, false
	}
	n, _ := Build(rec)
	n.Kind = KindOrderFailed
	n.QueueStatus = rec.Order.QueueStatus
	return n, true
}

// Message renders a one-line description
func (n Notification) Message() string {
	if n.Kind == KindOrderFailed {
		switch n.QueueStatus {
		case transaction.QueueApprovalFailed:
			return "Swap failed: the token approval was not confirmed"
		case transaction.QueueWrapFailed:
			return "Swap failed: wrapping the native currency was not confirmed"
		case transaction.QueueStale:
			return "Swap expired before it could be submitted"
		default:
			return "Swap order could not be submitted"
		}
	}
	if n.Kind == KindWalletConnect {
		return fmt.Sprintf("Transaction confirmed for %s", n.DappName)
	}

	verb := "confirmed"
	if n.TxStatus == transaction.StatusFailed {
		verb = "failed"
	}
	switch n.TxType {
	case transaction.TypeApprove:
		return fmt.Sprintf("Approval of %s %s", n.TokenAddress, verb)
	case transaction.TypeSwap:
		return fmt.Sprintf("Swap of %s %s for %s %s", n.InputCurrencyAmountRaw, n.InputCurrencyID, n.OutputCurrencyID, verb)
	case transaction.TypeWrap:
		if n.Unwrapped {
			return fmt.Sprintf("Unwrap of %s %s", n.CurrencyAmountRaw, verb)
		}
		return fmt.Sprintf("Wrap of %s %s", n.CurrencyAmountRaw, verb)
	case transaction.TypeSend:
		if n.TokenID != "" {
			return fmt.Sprintf("Send of %s #%s to %s %s", n.TokenAddress, n.TokenID, n.Recipient, verb)
		}
		return fmt.Sprintf("Send of %s %s to %s %s", n.CurrencyAmountRaw, n.TokenAddress, n.Recipient, verb)
	case transaction.TypeReceive:
		return fmt.Sprintf("Received %s %s from %s", n.CurrencyAmountRaw, n.TokenAddress, n.Sender)
	}
	return fmt.Sprintf("Transaction %s", verb)
}
