package ledger

import (
	"fmt"
	"slices"

	"github.com/roach88/potionshop/internal/shop"
)

// Apply adds one entry's amount to the account it moves.
func Apply(s *shop.State, e shop.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch {
	case e.LiquidType != "":
		s.Liquids = s.Liquids.Set(e.LiquidType, s.Liquids.Get(e.LiquidType)+int(e.Amount))
	case e.PotionID != 0:
		if s.Potions == nil {
			s.Potions = map[int64]int{}
		}
		s.Potions[e.PotionID] += int(e.Amount)
	case e.CapacityKind == shop.CapacityPotion:
		s.PotionUnits += int(e.Amount)
	case e.CapacityKind == shop.CapacityLiquid:
		s.LiquidUnits += int(e.Amount)
	case e.CapacityKind != "":
		return fmt.Errorf("ledger entry %d: unknown capacity kind %q", e.Seq, e.CapacityKind)
	default:
		s.Gold += e.Amount
	}
	return nil
}

// Replay folds entries onto a copy of base.
func Replay(base shop.State, entries []shop.LedgerEntry) (shop.State, error) {
	s := base.Clone()
	for _, e := range entries {
		if err := Apply(&s, e); err != nil {
			return shop.State{}, err
		}
	}
	return s, nil
}

// Compare lists every account where expected and actual differ, in account
// order: gold, liquids, capacities, then potions by id. A potion missing from
// one side counts as zero.
func Compare(expected, actual shop.State) []shop.Drift {
	var drift []shop.Drift
	check := func(account string, want, got int64) {
		if want != got {
			drift = append(drift, shop.Drift{Account: account, Expected: want, Actual: got})
		}
	}

	check(shop.GoldAccount, expected.Gold, actual.Gold)
	for _, lt := range shop.LiquidTypes {
		check(shop.LiquidAccount(lt), int64(expected.Liquids.Get(lt)), int64(actual.Liquids.Get(lt)))
	}
	check(shop.CapacityAccount(shop.CapacityPotion), int64(expected.PotionUnits), int64(actual.PotionUnits))
	check(shop.CapacityAccount(shop.CapacityLiquid), int64(expected.LiquidUnits), int64(actual.LiquidUnits))

	ids := make([]int64, 0, len(expected.Potions)+len(actual.Potions))
	for id := range expected.Potions {
		ids = append(ids, id)
	}
	for id := range actual.Potions {
		if _, ok := expected.Potions[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		check(shop.PotionAccount(id), int64(expected.Potions[id]), int64(actual.Potions[id]))
	}
	return drift
}

// SaleGold sums the gold-account amounts of SALE entries.
func SaleGold(entries []shop.LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		if e.ChangeType == shop.ChangeSale && e.Account() == shop.GoldAccount {
			total += e.Amount
		}
	}
	return total
}
