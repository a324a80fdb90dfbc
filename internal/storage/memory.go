package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"escrowScope/internal/model"
)

// MemoryMirror is an in-memory Mirror with the same upsert-guard semantics
// as the Postgres store. Used by tests and by the CLI's dry-run paths.
type MemoryMirror struct {
	mu     sync.Mutex
	nextID int64

	tokensByMint    map[string]model.Token
	poolsByAddress  map[string]model.Pool
	transfersByAddr map[string]model.Transfer
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{
		nextID:          1,
		tokensByMint:    make(map[string]model.Token),
		poolsByAddress:  make(map[string]model.Pool),
		transfersByAddr: make(map[string]model.Transfer),
	}
}

func (m *MemoryMirror) allocID() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MemoryMirror) UpsertToken(_ context.Context, token model.Token) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.tokensByMint[token.Mint]; ok {
		// Placeholder metadata never overwrites curated metadata.
		if token.Symbol != model.PlaceholderTokenSymbol && token.Symbol != "" {
			existing.Name = token.Name
			existing.Symbol = token.Symbol
			existing.Decimals = token.Decimals
			m.tokensByMint[token.Mint] = existing
		}
		return existing, nil
	}

	token.ID = m.allocID()
	token.CreatedAt = time.Now().UTC()
	m.tokensByMint[token.Mint] = token
	return token, nil
}

func (m *MemoryMirror) GetTokenByMint(_ context.Context, mint string) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokensByMint[mint]
	if !ok {
		return model.Token{}, ErrNotFound
	}
	return token, nil
}

func (m *MemoryMirror) GetTokenBySymbol(_ context.Context, symbol string) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range m.tokensByMint {
		if strings.EqualFold(token.Symbol, symbol) {
			return token, nil
		}
	}
	return model.Token{}, ErrNotFound
}

func (m *MemoryMirror) ListTokens(_ context.Context) ([]model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := make([]model.Token, 0, len(m.tokensByMint))
	for _, token := range m.tokensByMint {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens, nil
}

func (m *MemoryMirror) UpsertPool(_ context.Context, pool model.Pool) (model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.poolsByAddress[pool.Address]; ok {
		pool.ID = existing.ID
		pool.CreatedAt = existing.CreatedAt
		pool.UpdatedAt = now
		m.poolsByAddress[pool.Address] = pool
		return pool, nil
	}

	pool.ID = m.allocID()
	pool.CreatedAt = now
	pool.UpdatedAt = now
	m.poolsByAddress[pool.Address] = pool
	return pool, nil
}

func (m *MemoryMirror) GetPoolByAddress(_ context.Context, address string) (model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.poolsByAddress[address]
	if !ok {
		return model.Pool{}, ErrNotFound
	}
	return pool, nil
}

func (m *MemoryMirror) GetPoolByTokenID(_ context.Context, tokenID int64) (model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pool := range m.sortedPools() {
		if pool.TokenID == tokenID {
			return pool, nil
		}
	}
	return model.Pool{}, ErrNotFound
}

func (m *MemoryMirror) FirstActivePool(_ context.Context) (model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pool := range m.sortedPools() {
		if !pool.IsPaused {
			return pool, nil
		}
	}
	return model.Pool{}, ErrNotFound
}

func (m *MemoryMirror) sortedPools() []model.Pool {
	pools := make([]model.Pool, 0, len(m.poolsByAddress))
	for _, pool := range m.poolsByAddress {
		pools = append(pools, pool)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools
}

func (m *MemoryMirror) InsertPendingTransfer(_ context.Context, transfer model.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transfersByAddr[transfer.Address]; ok {
		return nil
	}

	now := time.Now().UTC()
	transfer.ID = m.allocID()
	transfer.Status = model.StatusPending
	transfer.CreatedAt = now
	transfer.UpdatedAt = now
	m.transfersByAddr[transfer.Address] = transfer
	return nil
}

func (m *MemoryMirror) UpsertActiveTransfer(_ context.Context, transfer model.Transfer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := m.transfersByAddr[transfer.Address]
	if !ok {
		transfer.ID = m.allocID()
		transfer.Status = model.StatusActive
		transfer.CreatedAt = now
		transfer.UpdatedAt = now
		m.transfersByAddr[transfer.Address] = transfer
		return true, nil
	}

	if existing.Status.Terminal() {
		return false, nil
	}

	transfer.ID = existing.ID
	transfer.Status = model.StatusActive
	transfer.CreatedAt = existing.CreatedAt
	transfer.UpdatedAt = now
	if transfer.CreateOpID == "" {
		transfer.CreateOpID = existing.CreateOpID
	}
	m.transfersByAddr[transfer.Address] = transfer
	return true, nil
}

func (m *MemoryMirror) MarkTransferTerminal(_ context.Context, address string, status model.TransferStatus, opID string) (bool, error) {
	if !status.Terminal() {
		return false, ErrNonTerminalStatus
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.transfersByAddr[address]
	if !ok {
		return false, ErrNotFound
	}
	if existing.Status.Terminal() {
		return false, nil
	}

	existing.Status = status
	existing.UpdatedAt = time.Now().UTC()
	if status == model.StatusClaimed {
		existing.ClaimOpID = opID
	} else {
		existing.CancelOpID = opID
	}
	m.transfersByAddr[address] = existing
	return true, nil
}

func (m *MemoryMirror) GetTransferByAddress(_ context.Context, address string) (model.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	transfer, ok := m.transfersByAddr[address]
	if !ok {
		return model.Transfer{}, ErrNotFound
	}
	return transfer, nil
}

func (m *MemoryMirror) ListTransfersByWallet(_ context.Context, wallet string, limit int) ([]model.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Transfer
	for _, transfer := range m.transfersByAddr {
		if transfer.Sender == wallet || transfer.Recipient == wallet {
			out = append(out, transfer)
		}
	}
	sortNewestFirst(out)
	return clip(out, limit), nil
}

func (m *MemoryMirror) ListRecentTransfers(_ context.Context, limit int) ([]model.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Transfer, 0, len(m.transfersByAddr))
	for _, transfer := range m.transfersByAddr {
		out = append(out, transfer)
	}
	sortNewestFirst(out)
	return clip(out, limit), nil
}

func (m *MemoryMirror) DeleteStalePending(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for address, transfer := range m.transfersByAddr {
		if transfer.Status == model.StatusPending && transfer.CreatedAt.Before(olderThan) {
			delete(m.transfersByAddr, address)
			removed++
		}
	}
	return removed, nil
}

func sortNewestFirst(transfers []model.Transfer) {
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].CreatedAt.Equal(transfers[j].CreatedAt) {
			return transfers[i].ID > transfers[j].ID
		}
		return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
	})
}

func clip(transfers []model.Transfer, limit int) []model.Transfer {
	if limit > 0 && len(transfers) > limit {
		return transfers[:limit]
	}
	return transfers
}
