//go:build ignore

// audit-chain.go independently audits a node's event log: it pages every
// record over the HTTP API, recomputes the Keccak-256 chain locally, and
// reports any position gaps, broken links, or hash mismatches. Unlike
// `agentctl verify` it does not trust the node's own verifier.
//
// Run with: go run scripts/audit-chain.go [-node http://localhost:8080]
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/sha3"
)

const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

type record struct {
	Position  uint64          `json:"position"`
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// rehash recomputes the chained digest from the wire fields. The preimage
// must match what the node seals: position|RFC3339Nano|kind|payload|prevHash.
func rehash(r record) string {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s",
		r.Position, r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Kind, r.Payload, r.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d", url, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func main() {
	node := flag.String("node", "http://localhost:8080", "node base URL")
	window := flag.Uint64("window", 512, "records fetched per request")
	flag.Parse()

	client := &http.Client{Timeout: 15 * time.Second}

	var tipResp struct {
		Tip uint64 `json:"tip"`
	}
	if err := getJSON(client, *node+"/api/v1/events/tip", &tipResp); err != nil {
		fmt.Fprintf(os.Stderr, "audit: read tip: %v\n", err)
		os.Exit(1)
	}
	tip := tipResp.Tip

	var (
		failures []string
		audited  uint64
		prevPos  uint64
		prevHash = genesisHash
		root     = genesisHash
	)

	for from := uint64(1); from <= tip; from += *window {
		to := from + *window - 1
		if to > tip {
			to = tip
		}

		var page struct {
			Events []record `json:"events"`
		}
		url := fmt.Sprintf("%s/api/v1/events?from=%d&to=%d", *node, from, to)
		if err := getJSON(client, url, &page); err != nil {
			fmt.Fprintf(os.Stderr, "\naudit: fetch [%d,%d]: %v\n", from, to, err)
			os.Exit(1)
		}

		for _, r := range page.Events {
			audited++
			fmt.Printf("\r  auditing... %d/%d", audited, tip)

			if r.Position != prevPos+1 {
				failures = append(failures, fmt.Sprintf("position gap: record %d follows %d", r.Position, prevPos))
			}
			if r.PrevHash != prevHash {
				failures = append(failures, fmt.Sprintf("record %d: prev_hash does not match record %d", r.Position, prevPos))
			}
			if got := rehash(r); got != r.Hash {
				failures = append(failures, fmt.Sprintf("record %d: recomputed hash %s… != sealed %s…", r.Position, got[:12], r.Hash[:12]))
			}
			prevPos, prevHash, root = r.Position, r.Hash, r.Hash
		}
	}
	fmt.Printf("\r  done — %d records audited\n\n", audited)

	// ── Report ────────────────────────────────────────────────────────────────
	fmt.Printf("══════════════════════════════════════════════════════\n")
	fmt.Printf("  Event Log Audit — %s\n", *node)
	fmt.Printf("  Records: %d  |  Root: %.16s…\n", audited, root)
	fmt.Printf("══════════════════════════════════════════════════════\n\n")

	if audited != tip {
		failures = append(failures, fmt.Sprintf("node reported tip %d but served %d records", tip, audited))
	}

	if len(failures) == 0 {
		fmt.Println("  ✦ chain intact — every record recomputes to its sealed hash")
		return
	}

	fmt.Printf("  %d failure(s):\n\n", len(failures))
	for _, f := range failures {
		fmt.Printf("  • %s\n", f)
	}
	os.Exit(1)
}
