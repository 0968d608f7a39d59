package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"wallet-swap/pkg/types"
)

// Balances reads native and ERC-20 balances
type Balances struct {
	clients ClientProvider
}

// NewBalances creates a balance reader
func NewBalances(clients ClientProvider) *Balances {
	return &Balances{clients: clients}
}

// Balance returns the raw balance of account in currency
func (b *Balances) Balance(ctx context.Context, account string, currency types.Currency) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account address: %s", account)
	}
	client, err := b.clients.Client(currency.ChainID)
	if err != nil {
		return nil, err
	}
	owner := common.HexToAddress(account)

	if currency.IsNative {
		balance, err := client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return balance, nil
	}

	data, err := balanceOfCalldata(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}
	token := common.HexToAddress(currency.Address)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}
