// Package ledger mutates stake state: vault weight, per-collection staked
// item sets and the boost item. Callers must run accrual first so weight
// changes never retroactively alter past-round accounting; the package
// itself is pure bookkeeping with no I/O.
package ledger

import (
	"strings"

	"github.com/holiman/uint256"

	"github.com/croplabs/farmd/internal/accrual"
	"github.com/croplabs/farmd/internal/domain"
)

// StakeFungible adds amount (Scale-denominated) to the vault's weight and
// the farm's total weight.
func StakeFungible(farm *domain.Farm, vault *domain.Vault, amount *uint256.Int) error {
	if farm.Mode != domain.FarmModeFungible {
		return domain.ErrWrongFarmMode
	}
	if amount == nil || amount.IsZero() {
		return domain.ErrZeroAmount
	}
	vault.Weight = new(uint256.Int).Add(vault.Weight, amount)
	farm.TotalWeight = new(uint256.Int).Add(farm.TotalWeight, amount)
	return nil
}

// UnstakeFungible removes amount from the vault's weight. Fails with
// ErrInsufficientStake when the vault holds less than requested.
func UnstakeFungible(farm *domain.Farm, vault *domain.Vault, amount *uint256.Int) error {
	if farm.Mode != domain.FarmModeFungible {
		return domain.ErrWrongFarmMode
	}
	if amount == nil || amount.IsZero() {
		return domain.ErrZeroAmount
	}
	if vault.Weight.Lt(amount) {
		return domain.ErrInsufficientStake
	}
	vault.Weight = new(uint256.Int).Sub(vault.Weight, amount)
	farm.TotalWeight = new(uint256.Int).Sub(farm.TotalWeight, amount)
	return nil
}

// StakeItem custodies one item and recomputes the vault's weight.
func StakeItem(farm *domain.Farm, vault *domain.Vault, collection, itemID string) error {
	if farm.Mode != domain.FarmModeNFT {
		return domain.ErrWrongFarmMode
	}
	if farm.CollectionRate(collection) == nil {
		return domain.ErrUnknownCollection
	}
	for _, id := range vault.StakedItems[collection] {
		if id == itemID {
			return domain.ErrItemAlreadyStaked
		}
	}
	vault.StakedItems[collection] = append(vault.StakedItems[collection], itemID)
	RecomputeWeight(farm, vault)
	return nil
}

// UnstakeItem releases the named item, or every item of the collection when
// itemID is empty, and recomputes weight. Returns the released items.
func UnstakeItem(farm *domain.Farm, vault *domain.Vault, collection, itemID string) ([]domain.ItemRef, error) {
	if farm.Mode != domain.FarmModeNFT {
		return nil, domain.ErrWrongFarmMode
	}
	ids := vault.StakedItems[collection]
	if len(ids) == 0 {
		return nil, domain.ErrUnknownItem
	}

	var removed []domain.ItemRef
	if itemID == "" {
		for _, id := range ids {
			removed = append(removed, domain.ItemRef{Collection: collection, ItemID: id})
		}
		delete(vault.StakedItems, collection)
	} else {
		idx := -1
		for i, id := range ids {
			if id == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, domain.ErrUnknownItem
		}
		removed = []domain.ItemRef{{Collection: collection, ItemID: itemID}}
		ids = append(ids[:idx], ids[idx+1:]...)
		if len(ids) == 0 {
			delete(vault.StakedItems, collection)
		} else {
			vault.StakedItems[collection] = ids
		}
	}

	RecomputeWeight(farm, vault)
	return removed, nil
}

// RestoreItem re-adds an item whose return transfer failed. Compensation
// path of UnstakeItem: it increments exactly what the reservation removed.
func RestoreItem(farm *domain.Farm, vault *domain.Vault, collection, itemID string) {
	vault.StakedItems[collection] = append(vault.StakedItems[collection], itemID)
	RecomputeWeight(farm, vault)
}

// SetBoost deposits the single boost item and recomputes weight. At most one
// boost item per vault.
func SetBoost(farm *domain.Farm, vault *domain.Vault, collection, itemID string) error {
	if farm.Mode != domain.FarmModeNFT {
		return domain.ErrWrongFarmMode
	}
	if _, ok := farm.BoostRateBPS(collection); !ok {
		return domain.ErrUnknownCollection
	}
	if vault.BoostItem != "" {
		return domain.ErrBoostAlreadySet
	}
	vault.BoostItem = collection + domain.BoostItemDelimiter + itemID
	RecomputeWeight(farm, vault)
	return nil
}

// RemoveBoost releases the boost item and recomputes weight. Returns the
// released reference.
func RemoveBoost(farm *domain.Farm, vault *domain.Vault) (domain.ItemRef, error) {
	if vault.BoostItem == "" {
		return domain.ItemRef{}, domain.ErrNoBoostItem
	}
	ref := SplitBoostItem(vault.BoostItem)
	vault.BoostItem = ""
	RecomputeWeight(farm, vault)
	return ref, nil
}

// RestoreBoost re-deposits a boost item whose return transfer failed.
func RestoreBoost(farm *domain.Farm, vault *domain.Vault, ref domain.ItemRef) {
	vault.BoostItem = ref.Collection + domain.BoostItemDelimiter + ref.ItemID
	RecomputeWeight(farm, vault)
}

// SplitBoostItem parses a "collection@item" boost reference.
func SplitBoostItem(boostItem string) domain.ItemRef {
	collection, itemID, _ := strings.Cut(boostItem, domain.BoostItemDelimiter)
	return domain.ItemRef{Collection: collection, ItemID: itemID}
}

// RecomputeWeight derives the vault's effective weight from its staked items
// and boost, then folds the difference into the farm's total weight. NFT
// mode only; fungible weight moves through Stake/UnstakeFungible directly.
func RecomputeWeight(farm *domain.Farm, vault *domain.Vault) {
	weight := uint256.NewInt(0)
	for collection, ids := range vault.StakedItems {
		rate := farm.CollectionRate(collection)
		if rate == nil {
			continue
		}
		part := new(uint256.Int).Mul(rate, uint256.NewInt(uint64(len(ids))))
		weight.Add(weight, part)
	}

	if vault.BoostItem != "" {
		ref := SplitBoostItem(vault.BoostItem)
		if bps, ok := farm.BoostRateBPS(ref.Collection); ok {
			boost := new(uint256.Int).Mul(weight, uint256.NewInt(bps))
			boost.Div(boost, uint256.NewInt(accrual.BasisPoints))
			weight.Add(weight, boost)
		}
	}

	switch weight.Cmp(vault.Weight) {
	case 1:
		diff := new(uint256.Int).Sub(weight, vault.Weight)
		farm.TotalWeight = new(uint256.Int).Add(farm.TotalWeight, diff)
	case -1:
		diff := new(uint256.Int).Sub(vault.Weight, weight)
		farm.TotalWeight = new(uint256.Int).Sub(farm.TotalWeight, diff)
	}
	vault.Weight = weight
}
