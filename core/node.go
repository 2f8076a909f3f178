package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"taxledger/core/events"
	"taxledger/core/genesis"
	"taxledger/core/journal"
	"taxledger/core/state"
	"taxledger/core/types"
	"taxledger/native/token"
	"taxledger/observability"
	"taxledger/storage"
	"taxledger/storage/trie"
)

var stateRootKey = []byte("taxledger/state-root")

// ErrDuplicateOperation is returned when a signed envelope was already applied.
var ErrDuplicateOperation = fmt.Errorf("%w: %w", token.ErrInvalidInput, journal.ErrDuplicateOperation)

// Options tunes a Node.
type Options struct {
	// EngineAddress is the ledger's own account.
	EngineAddress [20]byte
	// Logics are registered in addition to the built-in default logic.
	Logics []token.Logic
	Logger *slog.Logger
	// Emitters receive the events of an operation once it is journaled and
	// its state root stored. Events of rolled back operations never reach them.
	Emitters []events.Emitter
}

// Result describes an applied operation.
type Result struct {
	Hash      string
	Kind      types.OpType
	Sender    [20]byte
	StateRoot common.Hash
	Events    []journal.EventRecord
}

// recorder keeps the events of the operation in flight.
type recorder struct {
	evts []events.Event
}

func (r *recorder) Emit(e events.Event) {
	if e != nil {
		r.evts = append(r.evts, e)
	}
}

// drain returns the typed events with their rendered form and resets the
// recorder.
func (r *recorder) drain() ([]events.Event, []*types.Event) {
	typed := r.evts
	out := make([]*types.Event, 0, len(typed))
	for _, e := range typed {
		if rendered := events.Render(e); rendered != nil {
			out = append(out, rendered)
		}
	}
	r.evts = nil
	return typed, out
}

// Node admits signed operations one at a time, applies them to the ledger
// engine, persists the resulting state root and journals the events.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	journal *journal.Journal
	engine  *token.Engine
	opts    Options
	logger  *slog.Logger
	rec     *recorder
	assets  map[[20]byte]token.ForeignAsset
}

// NewNode opens the ledger state recorded in db, or an empty state when db is
// fresh.
func NewNode(db storage.Database, jr *journal.Journal, opts Options) (*Node, error) {
	if db == nil || jr == nil {
		return nil, fmt.Errorf("node: database and journal required")
	}
	if opts.EngineAddress == ([20]byte{}) {
		return nil, fmt.Errorf("node: engine address required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		db:      db,
		journal: jr,
		opts:    opts,
		logger:  logger.With("component", "node"),
		rec:     &recorder{},
		assets:  make(map[[20]byte]token.ForeignAsset),
	}
	root, err := n.storedRoot()
	if err != nil {
		return nil, err
	}
	if err := n.open(root); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) storedRoot() ([]byte, error) {
	root, err := n.db.Get(stateRootKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("node: load state root: %w", err)
	}
	return root, nil
}

// open rebuilds the engine over the state at root.
func (n *Node) open(root []byte) error {
	tr, err := trie.NewTrie(n.db, root)
	if err != nil {
		return fmt.Errorf("node: open state: %w", err)
	}
	if err := state.EnsureStateVersion(tr); err != nil {
		return err
	}
	engine, err := token.NewEngine(state.NewManager(tr), n.opts.EngineAddress)
	if err != nil {
		return err
	}
	for _, logic := range n.opts.Logics {
		if err := engine.RegisterLogic(logic); err != nil {
			return fmt.Errorf("node: register logic %s: %w", logic.ID(), err)
		}
	}
	engine.SetEmitter(n.rec)
	engine.SetAssetResolver(n.resolveAsset)
	n.engine = engine
	return nil
}

func (n *Node) resolveAsset(asset [20]byte) (token.ForeignAsset, bool) {
	foreign, ok := n.assets[asset]
	return foreign, ok
}

// RegisterForeignAsset makes a foreign ledger reachable by rescue.
func (n *Node) RegisterForeignAsset(asset [20]byte, ledger token.ForeignAsset) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ledger == nil {
		delete(n.assets, asset)
		return
	}
	n.assets[asset] = ledger
}

// Bootstrap initializes an empty ledger from spec. It is a no-op when the
// ledger is already initialized.
func (n *Node) Bootstrap(ctx context.Context, spec *genesis.Spec) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.engine.Initialized() {
		return nil
	}
	parent := n.engine.State().Root()
	n.rec.evts = nil
	if err := genesis.Apply(n.engine, spec); err != nil {
		if rbErr := n.open(parent.Bytes()); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	root, records, err := n.commit(ctx, journal.Receipt{OpHash: "genesis", Kind: "genesis"}, parent)
	if err != nil {
		return err
	}
	n.logger.Info("ledger initialized", "state_root", root.Hex(), "events", len(records))
	return nil
}

// Apply verifies and executes a signed operation.
func (n *Node) Apply(ctx context.Context, op *types.Operation) (*Result, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: operation required", token.ErrInvalidInput)
	}
	start := time.Now()
	kind := string(op.Type)
	sender, err := op.From()
	if err != nil {
		return nil, n.reject(kind, start, fmt.Errorf("%w: %w", token.ErrInvalidInput, err))
	}
	digest, err := op.Hash()
	if err != nil {
		return nil, n.reject(kind, start, fmt.Errorf("%w: %w", token.ErrInvalidInput, err))
	}
	hash := "0x" + hex.EncodeToString(digest)

	n.mu.Lock()
	defer n.mu.Unlock()

	seen, err := n.journal.HasOperation(ctx, hash)
	if err != nil {
		return nil, n.reject(kind, start, err)
	}
	if seen {
		observability.Ledger().RecordReplay()
		return nil, n.reject(kind, start, ErrDuplicateOperation)
	}

	parent := n.engine.State().Root()
	n.rec.evts = nil
	if err := n.dispatch(sender, op); err != nil {
		n.rec.evts = nil
		return nil, n.reject(kind, start, err)
	}
	root, records, err := n.commit(ctx, journal.Receipt{
		OpHash: hash,
		Kind:   kind,
		Sender: accountString(sender),
		Nonce:  op.Nonce,
	}, parent)
	if err != nil {
		return nil, n.reject(kind, start, err)
	}

	observability.Ledger().ObserveOperation(kind, "applied", time.Since(start))
	n.logger.Info("operation applied", "op", kind, "outcome", "applied", "events", len(records))
	return &Result{Hash: hash, Kind: op.Type, Sender: sender, StateRoot: root, Events: records}, nil
}

// commit persists the staged engine state, journals the recorded events and
// advances the stored state root. The engine is reopened at parent when any
// step fails.
func (n *Node) commit(ctx context.Context, receipt journal.Receipt, parent common.Hash) (common.Hash, []journal.EventRecord, error) {
	typed, rendered := n.rec.drain()
	rollback := func(cause error) error {
		if err := n.open(parent.Bytes()); err != nil {
			return fmt.Errorf("%w (rollback failed: %v)", cause, err)
		}
		return cause
	}
	root, err := n.engine.State().Commit()
	if err != nil {
		return common.Hash{}, nil, rollback(fmt.Errorf("node: commit state: %w", err))
	}
	receipt.StateRoot = root.Hex()
	records, err := n.journal.Record(ctx, receipt, rendered)
	if err != nil {
		return common.Hash{}, nil, rollback(fmt.Errorf("node: journal: %w", err))
	}
	if err := n.db.Put(stateRootKey, root.Bytes()); err != nil {
		cause := fmt.Errorf("node: store state root: %w", err)
		if forgetErr := n.journal.Forget(ctx, receipt.OpHash); forgetErr != nil {
			n.logger.Error("journal entry left for unapplied operation", "op_hash", receipt.OpHash, "error", forgetErr.Error())
		}
		return common.Hash{}, nil, rollback(cause)
	}
	n.publish(typed)
	n.recordBalances()
	return root, records, nil
}

// publish forwards committed events to the configured emitters.
func (n *Node) publish(evts []events.Event) {
	if len(n.opts.Emitters) == 0 {
		return
	}
	sink := events.Fanout(n.opts.Emitters)
	for _, e := range evts {
		sink.Emit(e)
	}
}

func (n *Node) reject(kind string, start time.Time, err error) error {
	category := token.Category(err)
	if errors.Is(err, ErrDuplicateOperation) {
		category = "replay"
	}
	observability.Ledger().ObserveOperation(kind, category, time.Since(start))
	n.logger.Warn("operation rejected", "op", kind, "outcome", category, "error", err.Error())
	return err
}

func (n *Node) recordBalances() {
	supply, err := n.engine.TotalSupply()
	if err != nil {
		return
	}
	pool, err := n.engine.RewardPoolBalance()
	if err != nil {
		pool = big.NewInt(0)
	}
	observability.Ledger().RecordBalances(supply, pool)
}

// StateRoot returns the root of the committed ledger state.
func (n *Node) StateRoot() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.State().Root()
}

// Close releases the journal connection. The key-value store is owned by the
// caller.
func (n *Node) Close() error {
	return n.journal.Close()
}
