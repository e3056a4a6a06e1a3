package shop

import "time"

// Potion is a catalog entry. Recipe and SKU are fixed at creation; Quantity
// and Version move with every mix and sale.
type Potion struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Recipe      Liquids `json:"recipe"`
	Price       int64   `json:"price"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Version     int64   `json:"version"`
}

// TotalML is the derived recipe volume.
func (p Potion) TotalML() int {
	return p.Recipe.Total()
}

// RecipeDef is the input of DefineRecipe.
type RecipeDef struct {
	Name        string  `json:"name" yaml:"name"`
	SKU         string  `json:"sku" yaml:"sku"`
	Recipe      Liquids `json:"recipe" yaml:"recipe"`
	Price       int64   `json:"price" yaml:"price"`
	Description string  `json:"description" yaml:"description"`
}

// Validate checks the recipe shape. SKU uniqueness is checked by the engine.
func (d RecipeDef) Validate() error {
	if d.Name == "" {
		return Validationf("recipe name is required")
	}
	if d.SKU == "" {
		return Validationf("recipe sku is required")
	}
	for _, lt := range LiquidTypes {
		if v := d.Recipe.Get(lt); v < 0 {
			return Validationf("recipe %s: %s volume must not be negative, got %d", d.SKU, lt, v)
		} else if v > MaxLiquidCapacity {
			return Validationf("recipe %s: %s volume %d exceeds the largest pool", d.SKU, lt, v)
		}
	}
	if d.Recipe.Total() == 0 {
		return Validationf("recipe %s: total volume must be positive", d.SKU)
	}
	if d.Price < 0 || d.Price > MaxPrice {
		return Validationf("recipe %s: price must be between 0 and %d, got %d", d.SKU, MaxPrice, d.Price)
	}
	return nil
}

// CatalogItem is one row of the public catalog.
type CatalogItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	// PotionType is the recipe as [red, green, blue, dark].
	PotionType []int `json:"potion_type"`
}

// CartStatus is the checkout state machine position of a cart.
type CartStatus string

const (
	CartOpen        CartStatus = "OPEN"
	CartCheckingOut CartStatus = "CHECKING_OUT"
	CartCheckedOut  CartStatus = "CHECKED_OUT"
)

// Cart is a shopping cart and its cached totals.
type Cart struct {
	ID                 int64      `json:"id"`
	CustomerID         int64      `json:"customer_id"`
	Status             CartStatus `json:"status"`
	TotalPotionsBought int        `json:"total_potions_bought"`
	TotalGoldPaid      int64      `json:"total_gold_paid"`
	Payment            string     `json:"payment,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CheckedOutAt       *time.Time `json:"checked_out_at,omitempty"`
}

// CheckedOut reports whether the cart reached its terminal state.
func (c Cart) CheckedOut() bool {
	return c.Status == CartCheckedOut
}

// CartItem is a line of a cart. Price is the catalog price at the time the
// potion was first added.
type CartItem struct {
	ID       int64  `json:"id"`
	CartID   int64  `json:"cart_id"`
	PotionID int64  `json:"potion_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// LineTotal is price × quantity.
func (it CartItem) LineTotal() int64 {
	return it.Price * int64(it.Quantity)
}

// Totals sums a set of cart lines.
func Totals(items []CartItem) (potions int, gold int64) {
	for _, it := range items {
		potions += it.Quantity
		gold += it.LineTotal()
	}
	return potions, gold
}

// CheckoutResult is returned by a successful checkout.
type CheckoutResult struct {
	CartID             int64  `json:"cart_id"`
	TxnID              string `json:"txn_id"`
	TotalPotionsBought int    `json:"total_potions_bought"`
	TotalGoldPaid      int64  `json:"total_gold_paid"`
}

// Customer is created by the registration collaborator during a visit.
type Customer struct {
	ID      int64  `json:"id"`
	VisitID int64  `json:"visit_id"`
	Name    string `json:"customer_name" yaml:"customer_name"`
	Class   string `json:"character_class" yaml:"character_class"`
	Level   int    `json:"level" yaml:"level"`
}

// Visit groups the customers that arrived together.
type Visit struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
