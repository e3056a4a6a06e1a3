// Package ledger holds the pure half of the audit trail: canonical hashing of
// entries, hash-chain verification, replay of entries into a shop.State and
// comparison of replayed against live state.
//
// Persistence lives in internal/store; the engine drives both.
//
// Each entry's Hash is SHA256(DomainEntry + 0x00 + canonical JSON of the
// entry including PrevHash), so rewriting any persisted row breaks the chain
// from that seq onward.
package ledger
