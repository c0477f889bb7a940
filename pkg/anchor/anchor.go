// Package anchor implements the append-only DAG ledger that tunnels anchor
// their tuple commitments into: Lamport-clock ordering, temporal-weight
// scoring, canonical-head selection, and host-delegated persistence of the
// post-quantum signatures that attach to each edge.
package anchor

import (
	"sort"
	"sync"

	"github.com/pqcnet/tunnelcore/internal/constants"
	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

// Op is the kind of state mutation a StateDiff applies during snapshot replay.
type Op byte

const (
	OpUpsert Op = iota
	OpDelete
)

// TupleEnvelope is the only tunnel session state ever exposed to the DAG:
// a commitment, not the key material it was derived from.
type TupleEnvelope struct {
	Commitment [32]byte
}

// Operation is a single key/value mutation within a StateDiff.
type Operation struct {
	Op    Op
	Key   string
	Value []byte
}

// StateDiff is one node in the DAG: a producer's ordered list of state
// mutations, referencing up to MaxParentReferences prior diffs.
type StateDiff struct {
	ID       string
	Producer string
	Parents  []string
	Lamport  uint64
	Ops      []Operation
	Tuple    *TupleEnvelope

	SignerKeyID *keymanager.KeyId
	Signature   []byte
}

// DAG is the append-only, host-backed ledger of StateDiffs.
type DAG struct {
	mu            sync.RWMutex
	alpha         uint64
	diffs         map[string]*StateDiff
	score         map[string]uint64
	isParent      map[string]bool // id -> referenced as someone's parent
	genesisExists bool
}

// New constructs an empty DAG. alpha is the temporal-weight coefficient
// (8 for development, 32 for production per the default engine configuration).
func New(alpha uint64) *DAG {
	return &DAG{
		alpha:    alpha,
		diffs:    make(map[string]*StateDiff),
		score:    make(map[string]uint64),
		isParent: make(map[string]bool),
	}
}

// Insert validates and appends diff to the DAG.
func (d *DAG) Insert(diff StateDiff) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(diff.Parents) > constants.MaxParentReferences {
		return qerrors.NewAnchorError(diff.ID, qerrors.ErrTooManyParents)
	}
	if _, exists := d.diffs[diff.ID]; exists {
		return qerrors.NewAnchorError(diff.ID, qerrors.ErrDuplicateDiff)
	}
	if len(diff.Parents) == 0 {
		if d.genesisExists {
			return qerrors.NewAnchorError(diff.ID, qerrors.ErrDuplicateGenesis)
		}
	}

	var maxParentLamport uint64
	var maxParentScore uint64
	haveParents := false
	for _, pid := range diff.Parents {
		parent, ok := d.diffs[pid]
		if !ok {
			return qerrors.NewAnchorError(diff.ID, qerrors.ErrUnknownParent)
		}
		if parent.Lamport > maxParentLamport {
			maxParentLamport = parent.Lamport
		}
		if s := d.score[pid]; !haveParents || s > maxParentScore {
			maxParentScore = s
		}
		haveParents = true
	}
	if haveParents && diff.Lamport <= maxParentLamport {
		return qerrors.NewAnchorError(diff.ID, qerrors.ErrStaleLamport)
	}

	weight := diff.Lamport + d.alpha*uint64(len(diff.Parents))
	cumulative := weight
	if haveParents {
		cumulative = maxParentScore + weight
	}

	stored := diff
	d.diffs[diff.ID] = &stored
	d.score[diff.ID] = cumulative
	for _, pid := range diff.Parents {
		d.isParent[pid] = true
	}
	if len(diff.Parents) == 0 {
		d.genesisExists = true
	}
	return nil
}

// Score returns the cumulative temporal-weight score of id.
func (d *DAG) Score(id string) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.score[id]
	return s, ok
}

// heads returns every diff id never referenced as a parent, i.e. the
// DAG's current tips. Caller must hold d.mu.
func (d *DAG) heads() []string {
	var out []string
	for id := range d.diffs {
		if !d.isParent[id] {
			out = append(out, id)
		}
	}
	return out
}

// pickBest returns the id with the highest score among candidates,
// tie-breaking on the lexicographically greater identifier.
func (d *DAG) pickBest(candidates []string) string {
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := d.score[candidates[i]], d.score[candidates[j]]
		if si != sj {
			return si > sj
		}
		return candidates[i] > candidates[j]
	})
	return candidates[0]
}

// CanonicalHead returns the id of the highest-scoring tip, tie-breaking on
// the lexicographically greater identifier.
func (d *DAG) CanonicalHead() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	heads := d.heads()
	if len(heads) == 0 {
		return "", qerrors.ErrUnknownKey
	}
	return d.pickBest(heads), nil
}

// CanonicalChain walks from the canonical head back to genesis, at each
// junction selecting the parent with the highest cumulative score
// (tie-break: lexicographically greater identifier). The result is ordered
// genesis-first.
func (d *DAG) CanonicalChain() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	heads := d.heads()
	if len(heads) == 0 {
		return nil, qerrors.ErrUnknownKey
	}
	cur := d.pickBest(heads)

	var chain []string
	for {
		chain = append(chain, cur)
		diff := d.diffs[cur]
		if len(diff.Parents) == 0 {
			break
		}
		cur = d.pickBest(append([]string(nil), diff.Parents...))
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Snapshot replays Upsert/Delete operations along the canonical chain,
// genesis first, and returns the resulting key/value state.
func (d *DAG) Snapshot() (map[string][]byte, error) {
	chain, err := d.CanonicalChain()
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	state := make(map[string][]byte)
	for _, id := range chain {
		diff := d.diffs[id]
		for _, op := range diff.Ops {
			switch op.Op {
			case OpUpsert:
				state[op.Key] = op.Value
			case OpDelete:
				delete(state, op.Key)
			}
		}
	}
	return state, nil
}

// HostStore is the embedder-provided persistence contract: the DAG never
// stores edge payloads or signatures itself, only delegates to the host.
type HostStore interface {
	GetEdgePayload(edgeID string) ([]byte, error)
	AttachPQCSignature(edgeID string, signerKeyID keymanager.KeyId, signature []byte) error
}

// SignatureVerifier checks a signature over a host-stored payload.
type SignatureVerifier func(signerKeyID keymanager.KeyId, storedPayload, signature []byte) bool

// VerifyAndAnchor fetches edgeID's payload from host, confirms it matches
// expectedPayload, invokes verify against it, and only on success persists
// the signature via host. On any failure the DAG and host are unchanged.
func VerifyAndAnchor(host HostStore, verify SignatureVerifier, edgeID string, signerKeyID keymanager.KeyId, expectedPayload, signature []byte) error {
	stored, err := host.GetEdgePayload(edgeID)
	if err != nil {
		return qerrors.NewAnchorError(edgeID, qerrors.ErrHostUnavailable)
	}
	if !bytesEqual(stored, expectedPayload) {
		return qerrors.NewAnchorError(edgeID, qerrors.ErrBadAnchorSignature)
	}
	if !verify(signerKeyID, stored, signature) {
		return qerrors.NewAnchorError(edgeID, qerrors.ErrBadAnchorSignature)
	}
	if err := host.AttachPQCSignature(edgeID, signerKeyID, signature); err != nil {
		return qerrors.NewAnchorError(edgeID, qerrors.ErrHostUnavailable)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
