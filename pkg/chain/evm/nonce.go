package evm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

// DefaultNonceCacheTTL bounds how long an RPC nonce is reused without forceRefresh
const DefaultNonceCacheTTL = 5 * time.Second

type nonceKey struct {
	chainID types.ChainID
	account common.Address
}

type cachedNonce struct {
	nonce     uint64
	fetchedAt time.Time
}

// NonceResolver returns the next usable nonce for an account: the larger of the
// node's pending nonce and one past the highest nonce of a tracked transaction.
// Final records count too, so a cached node nonce cannot go backwards when a
// sequence confirms inside the cache window.
type NonceResolver struct {
	clients ClientProvider
	store   transaction.Store
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[nonceKey]cachedNonce
}

// NewNonceResolver creates a resolver; store may be nil
func NewNonceResolver(clients ClientProvider, store transaction.Store) *NonceResolver {
	return &NonceResolver{
		clients: clients,
		store:   store,
		ttl:     DefaultNonceCacheTTL,
		now:     time.Now,
		cache:   make(map[nonceKey]cachedNonce),
	}
}

// Resolve returns the base nonce. forceRefresh skips the cached RPC value,
// private relays do not expose their pending pool to the public node.
func (r *NonceResolver) Resolve(ctx context.Context, account string, chainID types.ChainID, forceRefresh bool) (uint64, error) {
	if !common.IsHexAddress(account) {
		return 0, fmt.Errorf("invalid account address: %s", account)
	}
	key := nonceKey{chainID: chainID, account: common.HexToAddress(account)}

	remote, err := r.remote(ctx, key, forceRefresh)
	if err != nil {
		return 0, err
	}
	if local, ok := r.localNext(key); ok && local > remote {
		return local, nil
	}
	return remote, nil
}

func (r *NonceResolver) remote(ctx context.Context, key nonceKey, forceRefresh bool) (uint64, error) {
	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok && !forceRefresh && r.now().Sub(cached.fetchedAt) < r.ttl {
		return cached.nonce, nil
	}

	client, err := r.clients.Client(key.chainID)
	if err != nil {
		return 0, err
	}
	nonce, err := client.PendingNonceAt(ctx, key.account)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}

	r.mu.Lock()
	r.cache[key] = cachedNonce{nonce: nonce, fetchedAt: r.now()}
	r.mu.Unlock()
	return nonce, nil
}

func (r *NonceResolver) localNext(key nonceKey) (uint64, bool) {
	if r.store == nil {
		return 0, false
	}
	var (
		next  uint64
		found bool
	)
	for _, rec := range r.store.List() {
		// records are only added after a broadcast, so a pinned nonce is spent
		// whether the transaction is still pending or already final
		if rec.ChainID != key.chainID || rec.Nonce == nil || rec.IsOrder() {
			continue
		}
		if !strings.EqualFold(rec.From, key.account.Hex()) {
			continue
		}
		if n := *rec.Nonce + 1; !found || n > next {
			next, found = n, true
		}
	}
	return next, found
}

