package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/potionshop/internal/cache"
	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// CatalogSize is the maximum number of potions the catalog lists.
const CatalogSize = 6

const catalogKey = "catalog"

// DefineRecipe adds a potion to the catalog with zero stock. Recipes are
// immutable afterwards. No ledger entry is written: nothing moves until the
// potion is mixed.
func (e *Engine) DefineRecipe(ctx context.Context, def shop.RecipeDef) (shop.Potion, error) {
	potions, err := e.DefineRecipes(ctx, []shop.RecipeDef{def})
	if err != nil {
		return shop.Potion{}, err
	}
	return potions[0], nil
}

// DefineRecipes defines every recipe or none of them.
func (e *Engine) DefineRecipes(ctx context.Context, defs []shop.RecipeDef) ([]shop.Potion, error) {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}

	potions := make([]shop.Potion, 0, len(defs))
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		for _, def := range defs {
			p, err := tx.InsertPotion(ctx, def)
			if errors.Is(err, store.ErrDuplicate) {
				return shop.Validationf("sku %q already exists", def.SKU)
			}
			if err != nil {
				return err
			}
			potions = append(potions, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, p := range potions {
		e.log.Info("recipe defined", "potion", p.ID, "sku", p.SKU, "total_ml", p.TotalML(), "price", p.Price)
	}
	return potions, nil
}

// Potion reads one catalog entry.
func (e *Engine) Potion(ctx context.Context, id int64) (shop.Potion, error) {
	var p shop.Potion
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		p, err = tx.Potion(ctx, id)
		return lookup(err, "potion %d", id)
	})
	return p, err
}

// PotionBySKU reads one potion by SKU.
func (e *Engine) PotionBySKU(ctx context.Context, sku string) (shop.Potion, error) {
	var p shop.Potion
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		p, err = tx.PotionBySKU(ctx, sku)
		return lookup(err, "potion %q", sku)
	})
	return p, err
}

// Potions lists every catalog entry by id.
func (e *Engine) Potions(ctx context.Context) ([]shop.Potion, error) {
	var out []shop.Potion
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Potions(ctx)
		return err
	})
	return out, err
}

// MixResult describes a committed mix.
type MixResult struct {
	PotionID int64        `json:"potion_id"`
	SKU      string       `json:"sku"`
	Batches  int          `json:"batches"`
	Consumed shop.Liquids `json:"consumed"`
	Quantity int          `json:"quantity"`
	TxnID    string       `json:"txn_id"`
}

// MixPotion brews batches of a potion from the pool.
//
// The potion capacity check runs before any withdrawal. Liquids are
// withdrawn in shop.CanonicalLiquidOrder and any shortfall aborts the whole
// mix. The journal holds one LIQUID_CONSUMED entry per liquid type, zeros
// included, and one POTION_PRODUCED entry.
func (e *Engine) MixPotion(ctx context.Context, potionID int64, batches int) (MixResult, error) {
	if batches <= 0 {
		return MixResult{}, shop.Validationf("batches must be positive, got %d", batches)
	}

	var res MixResult
	var j shop.Journal
	err := e.retry(ctx, "mix", func() error {
		var inv shop.Inventory
		var p shop.Potion
		var count int
		err := e.store.View(ctx, func(tx *store.Tx) error {
			var err error
			if p, err = tx.Potion(ctx, potionID); err != nil {
				return lookup(err, "potion %d", potionID)
			}
			if inv, err = tx.Inventory(ctx); err != nil {
				return err
			}
			count, err = tx.PotionCount(ctx)
			return err
		})
		if err != nil {
			return err
		}
		e.snapshotDone("mix")

		if batches > inv.PotionCapacity()-count {
			return shop.NewCapacityExceeded(count+min(batches, math.MaxInt-count), inv.PotionCapacity())
		}
		need := p.Recipe.Scale(batches)
		if err := inv.WithdrawAll(need); err != nil {
			return err
		}

		entries := make([]shop.LedgerEntry, 0, len(shop.CanonicalLiquidOrder)+1)
		for _, lt := range shop.CanonicalLiquidOrder {
			entries = append(entries, shop.LedgerEntry{
				ChangeType:  shop.ChangeMix,
				SubType:     shop.SubLiquidConsumed,
				Amount:      -int64(need.Get(lt)),
				LiquidType:  lt,
				Description: fmt.Sprintf("mix %s x%d: %s", p.SKU, batches, lt),
			})
		}
		entries = append(entries, shop.LedgerEntry{
			ChangeType:  shop.ChangeMix,
			SubType:     shop.SubPotionProduced,
			Amount:      int64(batches),
			PotionID:    p.ID,
			Description: fmt.Sprintf("mix %s x%d", p.SKU, batches),
		})

		// Every operation that raises a potion count also writes the pool
		// row, so the inventory CAS keeps the capacity check above valid.
		err = e.store.Update(ctx, func(tx *store.Tx) error {
			if err := ensureWritable(ctx, tx, InventoryAggregate, PotionAggregate(p.ID)); err != nil {
				return err
			}
			if err := tx.SaveInventory(ctx, inv); err != nil {
				return err
			}
			if err := tx.AddPotionQuantity(ctx, p.ID, batches, p.Version); err != nil {
				return err
			}
			var err error
			j, err = e.record(ctx, tx, "mix", entries)
			return err
		})
		if err != nil {
			return err
		}
		res = MixResult{
			PotionID: p.ID,
			SKU:      p.SKU,
			Batches:  batches,
			Consumed: need,
			Quantity: p.Quantity + batches,
			TxnID:    j.TxnID,
		}
		return nil
	})
	if err != nil {
		return MixResult{}, err
	}

	e.committed(ctx, j)
	e.invalidateCatalog(ctx)
	return res, nil
}

// Catalog lists up to CatalogSize potions in stock, most plentiful first.
// The listing is served from the catalog cache when one is configured.
func (e *Engine) Catalog(ctx context.Context) ([]shop.CatalogItem, error) {
	if data, err := e.cache.Get(ctx, catalogKey); err == nil {
		var items []shop.CatalogItem
		if err := json.Unmarshal(data, &items); err == nil {
			return items, nil
		}
		e.log.Warn("discarding undecodable cached catalog")
	} else if !errors.Is(err, cache.ErrMiss) {
		e.log.Warn("catalog cache read failed", "error", err)
	}

	var items []shop.CatalogItem
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		items, err = tx.CatalogItems(ctx, CatalogSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []shop.CatalogItem{}
	}

	if data, err := json.Marshal(items); err == nil {
		if err := e.cache.Set(ctx, catalogKey, data, e.cacheTTL); err != nil {
			e.log.Warn("catalog cache write failed", "error", err)
		}
	}
	return items, nil
}

func (e *Engine) invalidateCatalog(ctx context.Context) {
	if err := e.cache.Delete(ctx, catalogKey); err != nil {
		e.log.Warn("catalog cache invalidation failed", "error", err)
	}
}
