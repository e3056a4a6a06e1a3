package ledger

import (
	"fmt"
	"io"
	"slices"

	"github.com/roach88/potionshop/internal/shop"
)

// Report is the outcome of one reconciliation.
type Report struct {
	// Since is the checkpoint seq replay started after (0 = genesis).
	Since int64 `json:"since"`

	// Through is the last seq replayed.
	Through int64 `json:"through"`

	// Entries is the number of entries replayed.
	Entries int `json:"entries"`

	Expected shop.State  `json:"expected"`
	Actual   shop.State  `json:"actual"`
	Drift    []shop.Drift `json:"drift,omitempty"`
}

// Clean reports whether replay matched live state.
func (r Report) Clean() bool {
	return len(r.Drift) == 0
}

// Render writes a fixed-width text table of every account.
func (r Report) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "reconcile since=%d through=%d entries=%d\n", r.Since, r.Through, r.Entries); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-18s %10s %10s\n", "ACCOUNT", "EXPECTED", "ACTUAL"); err != nil {
		return err
	}

	drifted := make(map[string]bool, len(r.Drift))
	for _, d := range r.Drift {
		drifted[d.Account] = true
	}
	row := func(account string, want, got int64) error {
		mark := ""
		if drifted[account] {
			mark = " !"
		}
		_, err := fmt.Fprintf(w, "%-18s %10d %10d%s\n", account, want, got, mark)
		return err
	}

	if err := row(shop.GoldAccount, r.Expected.Gold, r.Actual.Gold); err != nil {
		return err
	}
	for _, lt := range shop.LiquidTypes {
		if err := row(shop.LiquidAccount(lt), int64(r.Expected.Liquids.Get(lt)), int64(r.Actual.Liquids.Get(lt))); err != nil {
			return err
		}
	}
	if err := row(shop.CapacityAccount(shop.CapacityPotion), int64(r.Expected.PotionUnits), int64(r.Actual.PotionUnits)); err != nil {
		return err
	}
	if err := row(shop.CapacityAccount(shop.CapacityLiquid), int64(r.Expected.LiquidUnits), int64(r.Actual.LiquidUnits)); err != nil {
		return err
	}

	ids := make([]int64, 0, len(r.Actual.Potions))
	seen := map[int64]bool{}
	for _, m := range []map[int64]int{r.Expected.Potions, r.Actual.Potions} {
		for id := range m {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := row(shop.PotionAccount(id), int64(r.Expected.Potions[id]), int64(r.Actual.Potions[id])); err != nil {
			return err
		}
	}

	status := "clean"
	if !r.Clean() {
		status = fmt.Sprintf("DRIFT (%d accounts)", len(r.Drift))
	}
	_, err := fmt.Fprintf(w, "status: %s\n", status)
	return err
}
