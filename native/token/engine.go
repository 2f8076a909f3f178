package token

import (
	"errors"
	"fmt"
	"math/big"

	"taxledger/core/events"
	"taxledger/core/state"
	"taxledger/native/upgrade"
)

var errNilState = errors.New("token engine: state not configured")

// ForeignAsset is an external ledger holding balances on behalf of this
// engine's account. Transfer may call back into the engine.
type ForeignAsset interface {
	Transfer(to [20]byte, amount *big.Int) error
}

// AssetResolver locates the foreign ledger addressed by asset.
type AssetResolver func(asset [20]byte) (ForeignAsset, bool)

// Engine composes the account ledger, tax router, exemption registry, reward
// pool, access control and upgrade authority over one state view.
//
// Each mutating call runs against a copy of the state and the copy is adopted
// only when the call succeeds. The engine performs no locking; callers must
// admit one call at a time.
type Engine struct {
	st      *state.Manager
	emitter events.Emitter
	address [20]byte
	logics  *upgrade.Registry[Logic]
	logic   Logic
	assets  AssetResolver

	// pending collects events while an external call is in flight so nested
	// calls are only published once the outer call succeeds.
	pending *events.Buffer
}

// NewEngine binds an engine to st. address is the engine's own account and
// the initial reward pool. When st already holds an initialized ledger the
// recorded logic must be registered before any call; see RegisterLogic.
func NewEngine(st *state.Manager, address [20]byte) (*Engine, error) {
	if st == nil {
		return nil, errNilState
	}
	if address == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	e := &Engine{
		st:      st,
		emitter: events.NoopEmitter{},
		address: address,
		logics:  upgrade.NewRegistry[Logic](),
	}
	if err := e.RegisterLogic(DefaultLogic()); err != nil {
		return nil, err
	}
	return e, nil
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetAssetResolver configures how rescue locates foreign assets.
func (e *Engine) SetAssetResolver(resolver AssetResolver) {
	e.assets = resolver
}

// RegisterLogic makes impl available to AuthorizeUpgrade. If the stored state
// already points at impl it becomes the active logic.
func (e *Engine) RegisterLogic(impl Logic) error {
	if impl == nil {
		return fmt.Errorf("%w: logic required", ErrInvalidInput)
	}
	if err := e.logics.Register(impl); err != nil {
		return err
	}
	return e.loadActiveLogic()
}

// State returns the committed state view. The pointer changes after every
// successful mutation.
func (e *Engine) State() *state.Manager {
	return e.st
}

// Address returns the engine's own account.
func (e *Engine) Address() [20]byte {
	return e.address
}

func (e *Engine) loadActiveLogic() error {
	record, ok, err := e.st.LogicRecord()
	if err != nil {
		return err
	}
	if !ok {
		if e.logic == nil {
			e.logic, err = e.logics.Lookup(DefaultLogicRef)
		}
		return err
	}
	impl, err := e.logics.Lookup(record.Ref)
	if err != nil {
		// Resolved once the operator registers the recorded logic.
		e.logic = nil
		return nil
	}
	e.logic = impl
	return nil
}

func (e *Engine) sink() events.Emitter {
	if e.pending != nil {
		return e.pending
	}
	return e.emitter
}

// execute runs fn against a staged copy of the state. On success the copy,
// any logic switch and the buffered events are published together.
func (e *Engine) execute(fn func(tx *txn) error) error {
	if e.st == nil {
		return errNilState
	}
	if e.logic == nil {
		record, _, _ := e.st.LogicRecord()
		ref := ""
		if record != nil {
			ref = record.Ref
		}
		return fmt.Errorf("%w: active logic %q", ErrUnknownLogic, ref)
	}
	staged := e.st.Copy()
	buf := &events.Buffer{}
	tx, err := newTxn(e, staged, buf)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.checkSupply(); err != nil {
		return err
	}
	e.st = staged
	if tx.nextLogic != nil {
		e.logic = tx.nextLogic
	}
	buf.Flush(e.sink())
	return nil
}

// Initialize mints the full supply to the treasury and installs the initial
// configuration. caller becomes the first root admin and the treasury becomes
// the owner. It can only run once.
func (e *Engine) Initialize(caller [20]byte, params InitParams) error {
	return e.execute(func(tx *txn) error {
		if tx.initialized {
			return ErrAlreadyInitialized
		}
		if caller == ([20]byte{}) || params.Treasury == ([20]byte{}) || params.Reservoir == ([20]byte{}) {
			return ErrZeroAddress
		}
		if params.TaxBps > MaxTaxBps {
			return ErrTaxRateTooHigh
		}
		if err := tx.rejectReservoirPool(params.Reservoir, e.address); err != nil {
			return err
		}
		meta := &state.TokenMetadata{Name: params.Name, Symbol: params.Symbol, Decimals: Decimals}
		if err := validateMetadata(meta); err != nil {
			return err
		}
		if err := tx.st.SetTokenMetadata(meta); err != nil {
			return err
		}
		stored, _, err := tx.st.TokenMetadata()
		if err != nil {
			return err
		}
		tx.symbol = stored.Symbol
		tx.initialized = true

		supply := TotalSupplyAmount()
		if err := tx.st.SetTotalSupply(supply); err != nil {
			return err
		}
		if err := tx.credit(params.Treasury, supply); err != nil {
			return err
		}
		tx.emit(events.TokenSupply{Token: tx.symbol, Total: supply, Delta: supply, Reason: events.SupplyReasonMint})
		tx.emit(events.Transfer{Token: tx.symbol, To: params.Treasury, Amount: supply})

		if err := tx.st.SetTaxConfig(state.TaxConfig{RateBps: params.TaxBps, Reservoir: params.Reservoir}); err != nil {
			return err
		}
		if err := tx.st.SetRewardPool(e.address); err != nil {
			return err
		}
		for _, acct := range [][20]byte{params.Treasury, params.Reservoir, e.address} {
			if err := tx.st.SetTaxExempt(acct, true); err != nil {
				return err
			}
		}
		if err := classifyAccess(tx.access.Bootstrap(params.Treasury, caller)); err != nil {
			return err
		}
		layout := tx.logic.Layout()
		if err := tx.st.SetLogicRecord(&state.LogicRecord{
			Ref:      tx.logic.ID(),
			Version:  layout.Version,
			Fields:   layout.Fields,
			Reserved: layout.Reserved,
		}); err != nil {
			return err
		}
		if err := tx.st.SetStateVersion(state.StateVersion); err != nil {
			return err
		}
		tx.emit(events.Initialized{
			Name:      stored.Name,
			Symbol:    stored.Symbol,
			Treasury:  params.Treasury,
			Reservoir: params.Reservoir,
			Pool:      e.address,
			TaxBps:    params.TaxBps,
			Logic:     tx.logic.ID(),
		})
		return nil
	})
}

func validateMetadata(meta *state.TokenMetadata) error {
	if meta == nil || len(trimmed(meta.Name)) == 0 || len(trimmed(meta.Symbol)) == 0 {
		return ErrInvalidMetadata
	}
	return nil
}
