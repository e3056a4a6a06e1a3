package shop

const (
	// LiquidUnitSize is the ml each liquid capacity unit adds, per liquid type.
	LiquidUnitSize = 10000

	// PotionUnitSize is the number of potions each potion capacity unit stores.
	PotionUnitSize = 50

	// MaxCapacityUnits bounds the units of either kind, keeping capacities
	// and every quantity below them far from int overflow.
	MaxCapacityUnits = 1 << 20

	// MaxLiquidCapacity and MaxPotionCapacity are the largest capacities a
	// shop can own.
	MaxLiquidCapacity = MaxCapacityUnits * LiquidUnitSize
	MaxPotionCapacity = MaxCapacityUnits * PotionUnitSize

	// MaxPrice bounds a potion's price so no cart total can overflow.
	MaxPrice int64 = 1 << 30
)

// Genesis values of a fresh shop.
const (
	GenesisGold        int64 = 100
	GenesisPotionUnits       = 1
	GenesisLiquidUnits       = 1
)

// Inventory is the singleton resource pool.
//
// Version is the optimistic-concurrency token of the persisted row; the
// transitions below never touch it.
type Inventory struct {
	Gold        int64   `json:"gold"`
	Liquids     Liquids `json:"liquids"`
	PotionUnits int     `json:"potion_units"`
	LiquidUnits int     `json:"liquid_units"`
	Version     int64   `json:"version"`
}

// GenesisInventory returns the pool of a freshly opened shop.
func GenesisInventory() Inventory {
	return Inventory{
		Gold:        GenesisGold,
		PotionUnits: GenesisPotionUnits,
		LiquidUnits: GenesisLiquidUnits,
	}
}

// LiquidCapacity is the maximum ml of any single liquid type.
func (inv Inventory) LiquidCapacity() int {
	return inv.LiquidUnits * LiquidUnitSize
}

// PotionCapacity is the maximum number of potions across the catalog.
func (inv Inventory) PotionCapacity() int {
	return inv.PotionUnits * PotionUnitSize
}

// Deposit adds up to amount ml of lt, clamped to the free capacity of that
// liquid. It returns the accepted amount and the overflow that was not stored.
func (inv *Inventory) Deposit(lt LiquidType, amount int) (accepted, overflow int, err error) {
	if amount <= 0 {
		return 0, 0, Validationf("deposit amount must be positive, got %d", amount)
	}
	current := inv.Liquids.Get(lt)
	free := inv.LiquidCapacity() - current
	if free < 0 {
		free = 0
	}
	accepted = min(amount, free)
	inv.Liquids = inv.Liquids.Set(lt, current+accepted)
	return accepted, amount - accepted, nil
}

// Withdraw removes amount ml of lt. A zero amount is a no-op.
func (inv *Inventory) Withdraw(lt LiquidType, amount int) error {
	if amount < 0 {
		return Validationf("withdraw amount must not be negative, got %d", amount)
	}
	current := inv.Liquids.Get(lt)
	if amount > current {
		return NewInsufficientResource(lt, amount, current)
	}
	inv.Liquids = inv.Liquids.Set(lt, current-amount)
	return nil
}

// WithdrawAll withdraws every liquid of need in CanonicalLiquidOrder. On
// failure inv is left unchanged.
func (inv *Inventory) WithdrawAll(need Liquids) error {
	next := *inv
	for _, lt := range CanonicalLiquidOrder {
		if err := next.Withdraw(lt, need.Get(lt)); err != nil {
			return err
		}
	}
	*inv = next
	return nil
}

// CreditGold adds amount gold.
func (inv *Inventory) CreditGold(amount int64) error {
	if amount < 0 {
		return Validationf("credit amount must not be negative, got %d", amount)
	}
	inv.Gold += amount
	return nil
}

// DebitGold removes amount gold, failing if the balance would go negative.
func (inv *Inventory) DebitGold(amount int64) error {
	if amount < 0 {
		return Validationf("debit amount must not be negative, got %d", amount)
	}
	if amount > inv.Gold {
		return NewInsufficientGold(amount, inv.Gold)
	}
	inv.Gold -= amount
	return nil
}

// Units returns the capacity units of the given kind.
func (inv Inventory) Units(kind CapacityKind) int {
	if kind == CapacityPotion {
		return inv.PotionUnits
	}
	return inv.LiquidUnits
}

// AddUnits increments the capacity units of the given kind.
func (inv *Inventory) AddUnits(kind CapacityKind, units int) {
	if kind == CapacityPotion {
		inv.PotionUnits += units
		return
	}
	inv.LiquidUnits += units
}

// CapacityKind selects potion or liquid storage.
type CapacityKind string

const (
	CapacityPotion CapacityKind = "potion"
	CapacityLiquid CapacityKind = "liquid"
)

// ParseCapacityKind validates a capacity kind name.
func ParseCapacityKind(s string) (CapacityKind, error) {
	switch k := CapacityKind(s); k {
	case CapacityPotion, CapacityLiquid:
		return k, nil
	}
	return "", Validationf("unknown capacity kind %q", s)
}
