package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/potionshop/internal/shop"
)

// DomainEntry is the hash domain of ledger entries. The version suffix leaves
// room for a future change of the hashed field set.
const DomainEntry = "potionshop/ledger/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// entryObject is the hashed projection of an entry. Hash itself is excluded;
// PrevHash links the entry to its predecessor.
func entryObject(e shop.LedgerEntry) map[string]any {
	return map[string]any{
		"seq":           e.Seq,
		"txn_id":        e.TxnID,
		"change_type":   string(e.ChangeType),
		"sub_type":      string(e.SubType),
		"amount":        e.Amount,
		"liquid_type":   string(e.LiquidType),
		"potion_id":     e.PotionID,
		"capacity_kind": string(e.CapacityKind),
		"description":   e.Description,
		"created_at":    e.CreatedAt.UnixMicro(),
		"prev_hash":     e.PrevHash,
	}
}

// EntryHash computes the chained hash of e.
func EntryHash(e shop.LedgerEntry) (string, error) {
	canonical, err := MarshalCanonical(entryObject(e))
	if err != nil {
		return "", fmt.Errorf("EntryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// ChainError reports the first entry whose link or hash does not verify.
type ChainError struct {
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("ledger chain broken at seq %d: %s", e.Seq, e.Reason)
}

// VerifyChain checks that entries continue the chain ending in prevHash at
// prevSeq: seqs are contiguous, each PrevHash links to its predecessor and each
// Hash matches the entry content.
func VerifyChain(prevSeq int64, prevHash string, entries []shop.LedgerEntry) error {
	for _, e := range entries {
		if e.Seq != prevSeq+1 {
			return &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("expected seq %d", prevSeq+1)}
		}
		if e.PrevHash != prevHash {
			return &ChainError{Seq: e.Seq, Reason: "prev_hash does not match predecessor"}
		}
		want, err := EntryHash(e)
		if err != nil {
			return err
		}
		if e.Hash != want {
			return &ChainError{Seq: e.Seq, Reason: "hash does not match content"}
		}
		prevSeq, prevHash = e.Seq, e.Hash
	}
	return nil
}
