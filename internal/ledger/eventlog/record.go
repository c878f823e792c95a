package eventlog

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"golang.org/x/crypto/sha3"
)

// GenesisHash is the canonical well-known anchor of the chain. The first
// record's PrevHash equals this constant; all subsequent record hashes chain
// from it rather than from a computed value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// hashRecord computes a deterministic Keccak-256 digest over a record's
// chained fields. Timestamps must be UTC and microsecond-truncated so the
// digest survives a TIMESTAMPTZ round-trip.
func hashRecord(r *model.Record) string {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s",
		r.Position, r.Timestamp.Format(time.RFC3339Nano),
		r.Kind, r.Payload, r.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}
