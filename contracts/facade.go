package contracts

import "fmt"

// LedgerReader provides read-only snapshots of the ledger's view of a
// product. Implementations fetch; the facade never caches.
type LedgerReader interface {
	GetProduct(productID string) (*Product, error)
	GetHistory(productID string) ([]RawEvent, error)
	GetBlocks(productID string) ([]Block, error)
	AllBlocks() ([]Block, error)
}

// LedgerWriter applies a validated status change atomically. It is the
// sole authority on conflicts: a delta computed against a stale snapshot
// must fail with ErrConflict, never be applied over newer state.
type LedgerWriter interface {
	AppendStatusChange(delta *ProductDelta) error
}

// UserResolver looks up a username's role, used to validate custody
// transfer targets.
type UserResolver interface {
	ResolveUser(username string) (*User, error)
}

// ProductLedgerFacade composes the transition engine, the timeline
// reconciler and the chain verifier into one verified view of a product.
type ProductLedgerFacade struct {
	reader   LedgerReader
	writer   LedgerWriter
	users    UserResolver
	verifier *ChainVerifier
}

// NewProductLedgerFacade wires the facade. verifier may be nil, in which
// case a verifier with the default block digest is used.
func NewProductLedgerFacade(reader LedgerReader, writer LedgerWriter, users UserResolver, verifier *ChainVerifier) *ProductLedgerFacade {
	if verifier == nil {
		verifier = NewChainVerifier(nil)
	}
	return &ProductLedgerFacade{reader: reader, writer: writer, users: users, verifier: verifier}
}

// VerifiedView is a product's details, reconciled timeline and chain
// verification outcome in one response.
type VerifiedView struct {
	Product             *Product        `json:"product_details"`
	Timeline            []TimelineEvent `json:"verified_history_timeline"`
	BlockchainVerified  bool            `json:"blockchain_verified"`
	VerificationMessage string          `json:"verification_message"`
}

// ApplyStatusChange validates a status-change intent against the current
// ledger snapshot and, on success, hands the resulting delta to the
// writer. transferTo may be empty when the target status does not hand
// custody off.
func (f *ProductLedgerFacade) ApplyStatusChange(productID string, actingUser User,
	target Status, transferTo string, location *GeoPoint, now float64) (*ProductDelta, error) {

	product, err := f.reader.GetProduct(productID)
	if err != nil {
		return nil, err
	}

	var recipient *User
	if transferTo != "" {
		recipient, err = f.users.ResolveUser(transferTo)
		if err != nil {
			return nil, fmt.Errorf("resolving transfer target %q: %w", transferTo, err)
		}
	}

	delta, err := ProposeTransition(product, actingUser, target, recipient, location, now)
	if err != nil {
		return nil, err
	}

	if err := f.writer.AppendStatusChange(delta); err != nil {
		return nil, err
	}
	return delta, nil
}

// VerifiedTimeline merges the product's history records with the event
// payloads of its blocks into one canonical timeline. A status change is
// written to both stores in the same transaction, so the merge produces
// pairs sharing status, actor and timestamp; those collapse to the
// earlier entry (the history row, which carries structured coordinates).
func (f *ProductLedgerFacade) VerifiedTimeline(productID string) ([]TimelineEvent, error) {
	history, err := f.reader.GetHistory(productID)
	if err != nil {
		return nil, err
	}
	blocks, err := f.reader.GetBlocks(productID)
	if err != nil {
		return nil, err
	}

	raw := make([]RawEvent, 0, len(history)+len(blocks))
	raw = append(raw, history...)
	for _, b := range blocks {
		raw = append(raw, blockRawEvent(b))
	}
	return dedupeTimeline(Reconcile(raw)), nil
}

type timelineKey struct {
	status string
	actor  string
	millis int64
}

// dedupeTimeline drops later entries that repeat an earlier entry's
// status, actor and timestamp. Entries without a timestamp are never
// collapsed; nothing says they describe the same moment.
func dedupeTimeline(events []TimelineEvent) []TimelineEvent {
	seen := make(map[timelineKey]bool, len(events))
	out := events[:0]
	for _, e := range events {
		if e.UnixMillis != nil {
			key := timelineKey{status: e.Status, actor: e.Actor, millis: *e.UnixMillis}
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, e)
	}
	return out
}

// ChainVerification re-validates the full block sequence. The whole chain
// is checked, not just the product's blocks: link integrity only means
// anything over the unbroken sequence.
func (f *ProductLedgerFacade) ChainVerification() (VerificationResult, error) {
	blocks, err := f.reader.AllBlocks()
	if err != nil {
		return VerificationResult{}, err
	}
	return f.verifier.Verify(blocks), nil
}

// GetVerifiedView composes product details, reconciled timeline and chain
// verification into one result.
func (f *ProductLedgerFacade) GetVerifiedView(productID string) (*VerifiedView, error) {
	product, err := f.reader.GetProduct(productID)
	if err != nil {
		return nil, err
	}
	timeline, err := f.VerifiedTimeline(productID)
	if err != nil {
		return nil, err
	}
	verification, err := f.ChainVerification()
	if err != nil {
		return nil, err
	}
	return &VerifiedView{
		Product:             product,
		Timeline:            timeline,
		BlockchainVerified:  verification.Valid,
		VerificationMessage: verification.Message,
	}, nil
}

// blockRawEvent flattens a block into a raw event record for the
// reconciler: the data payload plus the block's own timestamp and index
// as fallbacks.
func blockRawEvent(b Block) RawEvent {
	raw := make(RawEvent, len(b.Data)+2)
	for k, v := range b.Data {
		raw[k] = v
	}
	if _, ok := raw["block_timestamp"]; !ok {
		raw["block_timestamp"] = b.Timestamp
	}
	raw["raw_block_index"] = b.Index
	return raw
}
