package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

const wethABI = `[
	{"constant":false,"inputs":[],"name":"deposit","outputs":[],"payable":true,"stateMutability":"payable","type":"function"},
	{"constant":false,"inputs":[{"name":"wad","type":"uint256"}],"name":"withdraw","outputs":[],"payable":false,"stateMutability":"nonpayable","type":"function"}
]`

var (
	erc20 = mustParseABI(erc20ABI)
	weth  = mustParseABI(wethABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid abi: %v", err))
	}
	return parsed
}

// TransferCalldata encodes ERC-20 transfer(to, amount)
func TransferCalldata(to string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}
	data, err := erc20.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return hexutil.Encode(data), nil
}

// ApproveCalldata encodes ERC-20 approve(spender, amount)
func ApproveCalldata(spender string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(spender) {
		return "", fmt.Errorf("invalid spender address: %s", spender)
	}
	data, err := erc20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack approve data: %w", err)
	}
	return hexutil.Encode(data), nil
}

// DepositCalldata encodes WETH deposit()
func DepositCalldata() string {
	data, _ := weth.Pack("deposit")
	return hexutil.Encode(data)
}

// WithdrawCalldata encodes WETH withdraw(amount)
func WithdrawCalldata(amount *big.Int) (string, error) {
	data, err := weth.Pack("withdraw", amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack withdraw data: %w", err)
	}
	return hexutil.Encode(data), nil
}

func balanceOfCalldata(owner common.Address) ([]byte, error) {
	return erc20.Pack("balanceOf", owner)
}
