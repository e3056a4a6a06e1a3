package shop

import (
	"fmt"
	"maps"
	"time"
)

// ChangeType is the operation a ledger entry belongs to.
type ChangeType string

const (
	ChangeGenesis         ChangeType = "GENESIS"
	ChangeLiquidDeposit   ChangeType = "LIQUID_DEPOSIT"
	ChangeMix             ChangeType = "MIX"
	ChangeSale            ChangeType = "SALE"
	ChangeCapacityUpgrade ChangeType = "CAPACITY_UPGRADE"
	ChangeAdminReset      ChangeType = "ADMIN_RESET"
)

// SubType refines a ChangeType.
type SubType string

const (
	SubNone           SubType = ""
	SubLiquidConsumed SubType = "LIQUID_CONSUMED"
	SubPotionProduced SubType = "POTION_PRODUCED"
	SubLineItem       SubType = "LINE_ITEM"
	SubGoldCredit     SubType = "GOLD_CREDIT"
	SubCapacity       SubType = "CAPACITY"
	SubGoldDebit      SubType = "GOLD_DEBIT"
)

// LedgerEntry is one immutable ledger row.
//
// An entry moves exactly one account, chosen by which reference is set:
// LiquidType, PotionID, CapacityKind, or none of them for gold.
// Seq, CreatedAt, PrevHash and Hash are assigned by the store on append.
type LedgerEntry struct {
	Seq          int64        `json:"seq"`
	TxnID        string       `json:"txn_id"`
	ChangeType   ChangeType   `json:"change_type"`
	SubType      SubType      `json:"sub_type,omitempty"`
	Amount       int64        `json:"amount"`
	LiquidType   LiquidType   `json:"liquid_type,omitempty"`
	PotionID     int64        `json:"potion_id,omitempty"`
	CapacityKind CapacityKind `json:"capacity_kind,omitempty"`
	Description  string       `json:"description"`
	CreatedAt    time.Time    `json:"created_at"`
	PrevHash     string       `json:"prev_hash"`
	Hash         string       `json:"hash"`
}

// Account names the balance this entry moves.
func (e LedgerEntry) Account() string {
	switch {
	case e.LiquidType != "":
		return LiquidAccount(e.LiquidType)
	case e.PotionID != 0:
		return PotionAccount(e.PotionID)
	case e.CapacityKind != "":
		return CapacityAccount(e.CapacityKind)
	}
	return GoldAccount
}

// GoldAccount is the account of entries with no reference set.
const GoldAccount = "gold"

func LiquidAccount(lt LiquidType) string    { return "liquid:" + string(lt) }
func PotionAccount(id int64) string         { return fmt.Sprintf("potion:%d", id) }
func CapacityAccount(k CapacityKind) string { return "capacity:" + string(k) }

// Validate checks that the entry references at most one account.
func (e LedgerEntry) Validate() error {
	refs := 0
	if e.LiquidType != "" {
		refs++
	}
	if e.PotionID != 0 {
		refs++
	}
	if e.CapacityKind != "" {
		refs++
	}
	if refs > 1 {
		return fmt.Errorf("ledger entry %s/%s references %d accounts", e.ChangeType, e.SubType, refs)
	}
	if e.ChangeType == "" {
		return fmt.Errorf("ledger entry has no change type")
	}
	return nil
}

// Journal is the set of entries committed by one unit of work.
type Journal struct {
	TxnID   string        `json:"txn_id"`
	Op      string        `json:"op"`
	Entries []LedgerEntry `json:"entries"`
}

// State is the aggregate view shared by live counters and ledger replay.
type State struct {
	Gold        int64         `json:"gold"`
	Liquids     Liquids       `json:"liquids"`
	PotionUnits int           `json:"potion_units"`
	LiquidUnits int           `json:"liquid_units"`
	Potions     map[int64]int `json:"potions"`
}

// NewState returns the zero state ledger replay starts from.
func NewState() State {
	return State{Potions: map[int64]int{}}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Potions = maps.Clone(s.Potions)
	if c.Potions == nil {
		c.Potions = map[int64]int{}
	}
	return c
}

// StateOf builds the live State from the pool and the catalog.
func StateOf(inv Inventory, potions []Potion) State {
	s := State{
		Gold:        inv.Gold,
		Liquids:     inv.Liquids,
		PotionUnits: inv.PotionUnits,
		LiquidUnits: inv.LiquidUnits,
		Potions:     make(map[int64]int, len(potions)),
	}
	for _, p := range potions {
		s.Potions[p.ID] = p.Quantity
	}
	return s
}
