// Package memstore is an in-memory implementation of the farm repositories
// for tests. A transaction clones the whole store, mutates the clone, and
// swaps it in on commit, so rollback and FOR UPDATE semantics match the real
// database closely enough for concurrency tests: the store mutex is held for
// the lifetime of a transaction.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/croplabs/farmd/internal/domain"
	"github.com/croplabs/farmd/internal/repository"
)

type vaultKey struct {
	farmID  int64
	account string
}

type state struct {
	farms       map[int64]*domain.Farm
	vaults      map[vaultKey]*domain.Vault
	settlements map[uuid.UUID]*domain.Settlement
	legs        map[uuid.UUID][]domain.SettlementLeg
}

func newState() *state {
	return &state{
		farms:       map[int64]*domain.Farm{},
		vaults:      map[vaultKey]*domain.Vault{},
		settlements: map[uuid.UUID]*domain.Settlement{},
		legs:        map[uuid.UUID][]domain.SettlementLeg{},
	}
}

func (st *state) clone() *state {
	cp := newState()
	for id, farm := range st.farms {
		cp.farms[id] = farm.Clone()
	}
	for key, vault := range st.vaults {
		cp.vaults[key] = vault.Clone()
	}
	for id, settlement := range st.settlements {
		s := *settlement
		cp.settlements[id] = &s
	}
	for id, legs := range st.legs {
		cp.legs[id] = cloneLegs(legs)
	}
	return cp
}

func cloneLegs(legs []domain.SettlementLeg) []domain.SettlementLeg {
	out := make([]domain.SettlementLeg, len(legs))
	for i, leg := range legs {
		out[i] = leg
		if leg.Amount != nil {
			out[i].Amount = leg.Amount.Clone()
		}
		if leg.Units != nil {
			out[i].Units = leg.Units.Clone()
		}
	}
	return out
}

// Store implements repository.Farm and repository.Settlement in memory
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store
func New() *Store {
	return &Store{st: newState()}
}

var _ repository.Farm = (*Store)(nil)
var _ repository.Settlement = (*Store)(nil)

// GetFarm retrieves a farm without locking
func (s *Store) GetFarm(_ context.Context, farmID int64) (*domain.Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	farm, ok := s.st.farms[farmID]
	if !ok {
		return nil, fmt.Errorf("farm %d not found", farmID)
	}
	return farm.Clone(), nil
}

// CreateFarm inserts a farm, leaving an existing one untouched
func (s *Store) CreateFarm(_ context.Context, farm *domain.Farm) (*domain.Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.st.farms[farm.ID]; ok {
		return existing.Clone(), nil
	}
	s.st.farms[farm.ID] = farm.Clone()
	return farm.Clone(), nil
}

// GetVault retrieves a vault without locking
func (s *Store) GetVault(_ context.Context, farmID int64, account string) (*domain.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vault, ok := s.st.vaults[vaultKey{farmID, account}]
	if !ok {
		return nil, domain.ErrVaultNotFound
	}
	return vault.Clone(), nil
}

// CountVaults returns the number of registered vaults
func (s *Store) CountVaults(_ context.Context, farmID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.st.vaults {
		if key.farmID == farmID {
			n++
		}
	}
	return n, nil
}

// BeginTx locks the store and returns a transaction over a cloned state
func (s *Store) BeginTx(_ context.Context) (repository.FarmTx, error) {
	s.mu.Lock()
	return &memTx{store: s, st: s.st.clone()}, nil
}

// GetSettlement retrieves a settlement with its legs
func (s *Store) GetSettlement(_ context.Context, id uuid.UUID) (*domain.Settlement, []domain.SettlementLeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settlement, ok := s.st.settlements[id]
	if !ok {
		return nil, nil, domain.ErrSettlementNotFound
	}
	cp := *settlement
	return &cp, cloneLegs(s.st.legs[id]), nil
}

// ListPendingLegs returns unreconciled legs of pending settlements
func (s *Store) ListPendingLegs(_ context.Context, limit int) ([]domain.SettlementLeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []domain.SettlementLeg
	ids := make([]uuid.UUID, 0, len(s.st.settlements))
	for id := range s.st.settlements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.st.settlements[ids[i]].CreatedAt.Before(s.st.settlements[ids[j]].CreatedAt)
	})
	for _, id := range ids {
		if s.st.settlements[id].Status != domain.SettlementPending {
			continue
		}
		for _, leg := range s.st.legs[id] {
			if leg.Status == domain.LegPending {
				pending = append(pending, cloneLegs([]domain.SettlementLeg{leg})[0])
				if len(pending) >= limit {
					return pending, nil
				}
			}
		}
	}
	return pending, nil
}

// ListSettlementsForAccount returns recent settlements for an account
func (s *Store) ListSettlementsForAccount(_ context.Context, account string, limit int) ([]domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Settlement
	for _, settlement := range s.st.settlements {
		if settlement.Account == account {
			out = append(out, *settlement)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memTx implements repository.FarmTx against a cloned state
type memTx struct {
	store  *Store
	st     *state
	closed bool
}

func (t *memTx) Commit(_ context.Context) error {
	if t.closed {
		return fmt.Errorf("%s", domain.ErrMsgTxClosed)
	}
	t.closed = true
	t.store.st = t.st
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.closed {
		return fmt.Errorf("%s", domain.ErrMsgTxClosed)
	}
	t.closed = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) GetFarmForUpdate(_ context.Context, farmID int64) (*domain.Farm, error) {
	farm, ok := t.st.farms[farmID]
	if !ok {
		return nil, fmt.Errorf("farm %d not found", farmID)
	}
	return farm.Clone(), nil
}

func (t *memTx) UpdateFarm(_ context.Context, farm *domain.Farm) error {
	if _, ok := t.st.farms[farm.ID]; !ok {
		return fmt.Errorf("farm %d not found", farm.ID)
	}
	t.st.farms[farm.ID] = farm.Clone()
	return nil
}

func (t *memTx) GetVaultForUpdate(_ context.Context, farmID int64, account string) (*domain.Vault, error) {
	vault, ok := t.st.vaults[vaultKey{farmID, account}]
	if !ok {
		return nil, domain.ErrVaultNotFound
	}
	return vault.Clone(), nil
}

func (t *memTx) CreateVault(_ context.Context, farmID int64, vault *domain.Vault) error {
	key := vaultKey{farmID, vault.Account}
	if _, ok := t.st.vaults[key]; ok {
		return fmt.Errorf("vault %s already exists", vault.Account)
	}
	cp := vault.Clone()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	t.st.vaults[key] = cp
	return nil
}

func (t *memTx) UpdateVault(_ context.Context, farmID int64, vault *domain.Vault) error {
	key := vaultKey{farmID, vault.Account}
	if _, ok := t.st.vaults[key]; !ok {
		return domain.ErrVaultNotFound
	}
	cp := vault.Clone()
	cp.UpdatedAt = time.Now()
	t.st.vaults[key] = cp
	return nil
}

func (t *memTx) DeleteVault(_ context.Context, farmID int64, account string) error {
	key := vaultKey{farmID, account}
	if _, ok := t.st.vaults[key]; !ok {
		return domain.ErrVaultNotFound
	}
	delete(t.st.vaults, key)
	return nil
}

func (t *memTx) CreateSettlement(_ context.Context, settlement *domain.Settlement, legs []domain.SettlementLeg) error {
	cp := *settlement
	cp.Status = domain.SettlementPending
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	t.st.settlements[settlement.ID] = &cp
	t.st.legs[settlement.ID] = cloneLegs(legs)
	return nil
}

func (t *memTx) ResolveLeg(_ context.Context, settlementID uuid.UUID, index int, status domain.LegStatus, legError string) (*domain.Settlement, bool, error) {
	settlement, ok := t.st.settlements[settlementID]
	if !ok {
		return nil, false, domain.ErrSettlementNotFound
	}
	legs := t.st.legs[settlementID]
	for i := range legs {
		if legs[i].Index != index {
			continue
		}
		transitioned := legs[i].Status == domain.LegPending
		if transitioned {
			legs[i].Status = status
			legs[i].Error = legError
			settlement.LegsResolved++
			if status == domain.LegFailed {
				settlement.LegsFailed++
			}
			settlement.UpdatedAt = time.Now()
		}
		cp := *settlement
		return &cp, transitioned, nil
	}
	return nil, false, fmt.Errorf("settlement leg %d not found", index)
}

func (t *memTx) SetSettlementStatus(_ context.Context, settlementID uuid.UUID, status domain.SettlementStatus) error {
	settlement, ok := t.st.settlements[settlementID]
	if !ok {
		return domain.ErrSettlementNotFound
	}
	settlement.Status = status
	settlement.UpdatedAt = time.Now()
	return nil
}
