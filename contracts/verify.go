package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DigestFunc recomputes the content hash of a block. The verifier only
// relies on the equality contract: a block is untampered iff its stored
// hash equals the digest of its stored content.
type DigestFunc func(Block) string

// ChainVerifier certifies that a block sequence is an unbroken, unmodified
// hash chain. It never repairs anything; a broken chain is a finding, not
// something to fix and continue from.
type ChainVerifier struct {
	digest DigestFunc
}

// NewChainVerifier returns a verifier using the given digest, or
// DefaultBlockDigest when digest is nil. Verifiers are stateless and safe
// for concurrent use.
func NewChainVerifier(digest DigestFunc) *ChainVerifier {
	if digest == nil {
		digest = DefaultBlockDigest
	}
	return &ChainVerifier{digest: digest}
}

// Verify checks the chain and reports the first failing block, if any.
// Callers may supply blocks in any order; they are sorted by index first.
// The genesis block has no predecessor, so only its own hash is re-checked.
// For every later block the link to its predecessor is checked before its
// content: a corrupted previous_hash also changes the recomputed digest,
// and it must be reported as a broken link, not tampered content.
func (v *ChainVerifier) Verify(blocks []Block) VerificationResult {
	if len(blocks) == 0 {
		return VerificationResult{Valid: true, Message: "no blocks to verify"}
	}

	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	for i := range sorted {
		curr := sorted[i]
		if i > 0 {
			if curr.PreviousHash != sorted[i-1].Hash {
				return brokenAt(curr.Index, ChainFaultLink,
					fmt.Sprintf("previous hash mismatch at index %d", curr.Index))
			}
		}
		if curr.Hash != v.digest(curr) {
			return brokenAt(curr.Index, ChainFaultContent,
				fmt.Sprintf("hash mismatch at index %d", curr.Index))
		}
	}

	return VerificationResult{Valid: true, Message: "blockchain is valid"}
}

func brokenAt(index int, fault ChainFault, message string) VerificationResult {
	return VerificationResult{
		Valid:       false,
		Message:     message,
		Fault:       fault,
		BrokenIndex: &index,
	}
}

// DefaultBlockDigest hashes the canonical serialization of a block's
// content: index, timestamp, the data payload marshaled with sorted keys,
// previous_hash and nonce. The stored hash field itself is excluded.
func DefaultBlockDigest(b Block) string {
	payload, err := json.Marshal(b.Data)
	if err != nil {
		payload = []byte("null")
	}
	content := strconv.Itoa(b.Index) +
		strconv.FormatFloat(b.Timestamp, 'f', -1, 64) +
		string(payload) +
		b.PreviousHash +
		strconv.Itoa(b.Nonce)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewBlock chains a new block onto prev, computing its hash with digest
// (DefaultBlockDigest when nil). prev may be nil, which produces the
// genesis block with index 0 and previous hash "0".
func NewBlock(prev *Block, timestamp float64, data map[string]interface{}, digest DigestFunc) Block {
	if digest == nil {
		digest = DefaultBlockDigest
	}
	block := Block{
		Index:        0,
		Timestamp:    timestamp,
		Data:         data,
		PreviousHash: "0",
	}
	if prev != nil {
		block.Index = prev.Index + 1
		block.PreviousHash = prev.Hash
	}
	block.Hash = digest(block)
	return block
}

// NewGenesisBlock returns the chain's first block.
func NewGenesisBlock(timestamp float64, digest DigestFunc) Block {
	return NewBlock(nil, timestamp, map[string]interface{}{"type": "genesis"}, digest)
}
