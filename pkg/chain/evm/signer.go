package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

// ClientProvider resolves chain clients
type ClientProvider interface {
	Client(chainID types.ChainID) (ChainClient, error)
	PrivateClient(chainID types.ChainID) (ChainClient, bool)
}

// Signer signs with local private keys and broadcasts over RPC
type Signer struct {
	clients ClientProvider
	keys    map[common.Address]*ecdsa.PrivateKey
	logger  *log.Entry
}

// NewSigner loads hex-encoded private keys
func NewSigner(clients ClientProvider, hexKeys ...string) (*Signer, error) {
	s := &Signer{
		clients: clients,
		keys:    make(map[common.Address]*ecdsa.PrivateKey),
		logger:  log.WithField("component", "signer"),
	}
	for _, hexKey := range hexKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		s.keys[crypto.PubkeyToAddress(key.PublicKey)] = key
	}
	return s, nil
}

// Accounts lists the addresses the signer holds keys for, sorted
func (s *Signer) Accounts() []string {
	accounts := make([]string, 0, len(s.keys))
	for addr := range s.keys {
		accounts = append(accounts, addr.Hex())
	}
	sort.Strings(accounts)
	return accounts
}

func (s *Signer) key(account string) (*ecdsa.PrivateKey, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account address: %s", account)
	}
	key, ok := s.keys[common.HexToAddress(account)]
	if !ok {
		return nil, fmt.Errorf("no key for account %s", account)
	}
	return key, nil
}

// Submit signs req and broadcasts it, through the private relay when requested
func (s *Signer) Submit(ctx context.Context, chainID types.ChainID, account string, req types.TxRequest, opts transaction.SubmitOptions) (string, error) {
	key, err := s.key(account)
	if err != nil {
		return "", err
	}
	client, err := s.clients.Client(chainID)
	if err != nil {
		return "", err
	}
	broadcaster := client
	if opts.PrivateRPC {
		if private, ok := s.clients.PrivateClient(chainID); ok {
			broadcaster = private
		} else {
			s.logger.WithField("chain", chainID).Warn("private RPC requested but not configured, using public RPC")
		}
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	if !common.IsHexAddress(req.To) {
		return "", fmt.Errorf("invalid destination address: %s", req.To)
	}
	to := common.HexToAddress(req.To)

	var data []byte
	if req.Data != "" && req.Data != "0x" {
		data, err = hexutil.Decode(req.Data)
		if err != nil {
			return "", fmt.Errorf("invalid calldata: %w", err)
		}
	}
	value, err := req.ValueWei()
	if err != nil {
		return "", err
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else {
		nonce, err = client.PendingNonceAt(ctx, from)
		if err != nil {
			return "", fmt.Errorf("failed to get nonce: %w", err)
		}
	}

	gasLimit, err := req.Gas()
	if err != nil {
		return "", err
	}
	if gasLimit == 0 {
		estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
		if err != nil {
			return "", fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated * 120 / 100 // Add 20% buffer
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(big.NewInt(int64(chainID))), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := broadcaster.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

// SignTypedData signs Trading API permit data (EIP-712) and returns the 65-byte signature
func (s *Signer) SignTypedData(ctx context.Context, chainID types.ChainID, account string, permitData json.RawMessage) (string, error) {
	key, err := s.key(account)
	if err != nil {
		return "", err
	}
	typedData, err := PermitTypedData(permitData, chainID)
	if err != nil {
		return "", err
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("failed to hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
