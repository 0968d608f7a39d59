package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"wallet-swap/pkg/types"
)

// ChainClient is the subset of ethclient.Client used here
type ChainClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Endpoint configures the RPC URLs of one chain
type Endpoint struct {
	ChainID       types.ChainID
	RPCURL        string
	PrivateRPCURL string
}

// Clients holds a public and an optional private (MEV-protected) client per chain
type Clients struct {
	mu      sync.RWMutex
	public  map[types.ChainID]ChainClient
	private map[types.ChainID]ChainClient
}

// NewClients creates an empty registry
func NewClients() *Clients {
	return &Clients{
		public:  make(map[types.ChainID]ChainClient),
		private: make(map[types.ChainID]ChainClient),
	}
}

// Dial connects to every endpoint
func Dial(endpoints []Endpoint) (*Clients, error) {
	c := NewClients()
	for _, ep := range endpoints {
		if ep.RPCURL == "" {
			return nil, fmt.Errorf("RPC URL not configured for chain %s", ep.ChainID)
		}
		public, err := ethclient.Dial(ep.RPCURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to %s RPC endpoint: %w", ep.ChainID, err)
		}
		var private ChainClient
		if ep.PrivateRPCURL != "" {
			pc, err := ethclient.Dial(ep.PrivateRPCURL)
			if err != nil {
				public.Close()
				c.Close()
				return nil, fmt.Errorf("failed to connect to %s private RPC endpoint: %w", ep.ChainID, err)
			}
			private = pc
		}
		c.Set(ep.ChainID, public, private)
	}
	return c, nil
}

// Set registers clients for a chain; private may be nil
func (c *Clients) Set(chainID types.ChainID, public, private ChainClient) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.public[chainID] = public
	if private != nil {
		c.private[chainID] = private
	}
}

// Client returns the public client of a chain
func (c *Clients) Client(chainID types.ChainID) (ChainClient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	client, ok := c.public[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %s not configured", chainID)
	}
	return client, nil
}

// PrivateClient returns the private relay client of a chain, if any
func (c *Clients) PrivateClient(chainID types.ChainID) (ChainClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	client, ok := c.private[chainID]
	return client, ok
}

// SupportsPrivateRPC reports whether submissions on chainID can use a private relay
func (c *Clients) SupportsPrivateRPC(chainID types.ChainID) bool {
	_, ok := c.PrivateClient(chainID)
	return ok
}

// Chains lists the configured chains
func (c *Clients) Chains() []types.ChainID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]types.ChainID, 0, len(c.public))
	for id := range c.public {
		ids = append(ids, id)
	}
	return ids
}

// Close closes every client
func (c *Clients) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.public {
		client.Close()
	}
	for _, client := range c.private {
		client.Close()
	}
	c.public = make(map[types.ChainID]ChainClient)
	c.private = make(map[types.ChainID]ChainClient)
}
