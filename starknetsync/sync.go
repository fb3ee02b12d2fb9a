package starknetsync

import (
	"context"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/starkware-libs/starksync-go/internal/metrics"
	"github.com/starkware-libs/starksync-go/starknetapi"
	"github.com/starkware-libs/starksync-go/starknetsync/central"
	"github.com/starkware-libs/starksync-go/starknetsync/storage"
)

// Local aliases keep the rest of this package's signatures uncluttered;
// the underlying types are the storage and starknetapi packages' own.
type (
	blockNumber            = starknetapi.BlockNumber
	bodyRevertResult       = storage.BodyRevertResult
	stateDiffRevertResult  = storage.StateDiffRevertResult
)

func isBlockNotFound(err error) bool {
	_, ok := err.(*central.BlockNotFoundError)
	return ok
}

// GenericStateSync is the sync engine: the supervisor loop (C7) driving
// the revert controller (C6) and the two-stream serial processor (C3-C5)
// against one CentralSource and one storage.Store.
type GenericStateSync struct {
	config  Config
	central central.CentralSource
	store   storage.Store
	logger  log.Logger
	metrics *metrics.SyncMetrics
}

// NewGenericStateSync wires a sync engine from its three collaborators.
func NewGenericStateSync(cfg Config, source central.CentralSource, store storage.Store, logger log.Logger) *GenericStateSync {
	if logger == nil {
		logger = log.Root()
	}
	return &GenericStateSync{
		config:  cfg,
		central: source,
		store:   store,
		logger:  logger,
		metrics: metrics.NewSyncMetrics(),
	}
}

// Run is the supervisor loop (C7): it drives syncWhileOk, classifying
// every error it returns. A ParentBlockHashMismatch triggers an immediate
// revert-and-retry; any other recoverable error sleeps
// RecoverableErrorSleep before retrying; anything else is fatal and stops
// the engine.
func (s *GenericStateSync) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.syncWhileOk(ctx)
		if err == nil {
			continue
		}

		if _, ok := err.(*ParentBlockHashMismatchError); ok {
			// syncWhileOk already runs handleBlockReverts as its first step
			// on every iteration, so the revert itself happens on the next
			// pass through this loop; its error, if any, gets the same
			// Recoverable classification as everything else instead of
			// bypassing it here.
			s.logger.Info("chain reorg detected, reverting", "err", err)
			continue
		}

		if !Recoverable(err) {
			s.logger.Error("fatal sync error, stopping", "err", err)
			return err
		}

		s.metrics.RecoverableErrorCount.Inc()
		s.logger.Warn("recoverable sync error, retrying", "err", err)
		select {
		case <-time.After(s.config.RecoverableErrorSleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// syncWhileOk runs the revert controller once, then races the block and
// state-diff pollers, feeding a single channel that processSyncEvent
// drains serially. It returns as soon as either poller or the processor
// reports an error (including ctx cancellation bubbling up as ctx.Err()).
func (s *GenericStateSync) syncWhileOk(ctx context.Context) error {
	if err := s.handleBlockReverts(ctx); err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan SyncEvent)
	pollErrs := make(chan error, 2)
	done := make(chan struct{})

	go func() {
		pollErrs <- s.blockStream(streamCtx, events)
		done <- struct{}{}
	}()
	go func() {
		pollErrs <- s.stateDiffStream(streamCtx, events)
		done <- struct{}{}
	}()
	go func() {
		<-done
		<-done
		close(events)
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return <-pollErrs
			}
			if err := s.processSyncEvent(ctx, ev); err != nil {
				return err
			}
		case err := <-pollErrs:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// blockStream polls from header_marker up to the central source's
// current tip, forwarding every fetched block as a BlockAvailable event,
// then sleeps BlockPropagationSleep once caught up. It returns only on
// error or ctx cancellation.
func (s *GenericStateSync) blockStream(ctx context.Context, events chan<- SyncEvent) error {
	for {
		ro := s.store.BeginRO()
		lo, err := ro.HeaderMarker()
		ro.Discard()
		if err != nil {
			return err
		}

		latest, err := s.central.LatestBlock(ctx)
		if err != nil {
			return err
		}
		if latest == nil || *latest < lo {
			if err := sleepCtx(ctx, s.config.BlockPropagationSleep); err != nil {
				return err
			}
			continue
		}

		hi := *latest + 1
		if s.config.BlocksMaxStreamSize > 0 && uint64(hi-lo) > s.config.BlocksMaxStreamSize {
			hi = lo + blockNumber(s.config.BlocksMaxStreamSize)
		}
		if hi <= lo {
			if err := sleepCtx(ctx, s.config.BlockPropagationSleep); err != nil {
				return err
			}
			continue
		}

		for item := range s.central.StreamBlocks(ctx, lo, hi) {
			if item.Err != nil {
				return item.Err
			}
			select {
			case events <- SyncEvent{Block: &BlockAvailable{Number: item.Number, Block: item.Block}}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if hi == *latest+1 {
			if err := sleepCtx(ctx, s.config.BlockPropagationSleep); err != nil {
				return err
			}
		}
	}
}

// stateDiffStream polls from state_marker up to the central
// source's current tip -- deliberately the same upper bound blockStream
// uses, not the locally observed header_marker, so this stream is never
// artificially throttled by how far headers have synced (see DESIGN.md's
// open-question decision on stream_state_updates' upper bound).
func (s *GenericStateSync) stateDiffStream(ctx context.Context, events chan<- SyncEvent) error {
	for {
		ro := s.store.BeginRO()
		lo, err := ro.StateMarker()
		ro.Discard()
		if err != nil {
			return err
		}

		latest, err := s.central.LatestBlock(ctx)
		if err != nil {
			return err
		}
		if latest == nil || *latest < lo {
			if err := sleepCtx(ctx, s.config.BlockPropagationSleep); err != nil {
				return err
			}
			continue
		}

		hi := *latest + 1
		if s.config.StateUpdatesMaxStreamSize > 0 && uint64(hi-lo) > s.config.StateUpdatesMaxStreamSize {
			hi = lo + blockNumber(s.config.StateUpdatesMaxStreamSize)
		}
		if hi <= lo {
			if err := sleepCtx(ctx, s.config.BlockPropagationSleep); err != nil {
				return err
			}
			continue
		}

		for item := range s.central.StreamStateUpdates(ctx, lo, hi) {
			if item.Err != nil {
				return item.Err
			}
			select {
			case events <- SyncEvent{StateDiff: &StateDiffAvailable{
				Number:                  item.Number,
				BlockHash:               item.BlockHash,
				StateDiff:               item.StateDiff,
				DeployedContractClasses: item.DeployedContractClasses,
			}}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if hi == *latest+1 {
			if err := sleepCtx(ctx, s.config.BlockPropagationSleep); err != nil {
				return err
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processSyncEvent dispatches to storeBlock or storeStateDiff. It is the
// single serial consumer of both streams, which is what keeps append
// order deterministic despite the streams racing to produce.
func (s *GenericStateSync) processSyncEvent(ctx context.Context, ev SyncEvent) error {
	if ev.Block != nil {
		return s.storeBlock(ctx, ev.Block)
	}
	if ev.StateDiff != nil {
		return s.storeStateDiff(ctx, ev.StateDiff)
	}
	return nil
}

// storeBlock verifies the new block's parent hash against the locally
// stored predecessor, then appends header and body in one write
// transaction. A stale event (marker already past this number) is a
// silent no-op: both pollers can race past the same number before a
// revert has fully drained from the channel.
func (s *GenericStateSync) storeBlock(ctx context.Context, ba *BlockAvailable) error {
	ro := s.store.BeginRO()
	headerMarker, err := ro.HeaderMarker()
	if err != nil {
		ro.Discard()
		return err
	}
	if ba.Number != headerMarker {
		ro.Discard()
		return nil
	}

	if err := s.verifyParentBlockHash(ro, ba); err != nil {
		ro.Discard()
		return err
	}
	ro.Discard()

	wtx := s.store.BeginRW()
	committed := false
	defer func() {
		if !committed {
			wtx.Rollback()
		}
	}()

	wtx, err = wtx.AppendHeader(ba.Number, &ba.Block.Header)
	if err != nil {
		return err
	}
	wtx, err = wtx.AppendBody(ba.Number, &ba.Block.Body)
	if err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return err
	}
	committed = true
	s.metrics.HeaderMarker.Set(float64(ba.Number + 1))
	return nil
}

// verifyParentBlockHash checks the new block's declared parent hash
// against block number-1's stored hash. Block 0 has no parent to check.
// storeBlock only calls this once it has confirmed ba.Number == header_marker,
// so a missing predecessor here means header_marker ran ahead of what's
// actually stored -- a storage invariant violation, not a sync condition.
func (s *GenericStateSync) verifyParentBlockHash(ro storage.ReadTxn, ba *BlockAvailable) error {
	if ba.Number == 0 {
		return nil
	}
	parent, err := ro.GetBlockHeader(ba.Number - 1)
	if err != nil {
		return err
	}
	if parent == nil {
		return &storage.DBInconsistencyError{Msg: "header_marker's predecessor header is missing from storage"}
	}
	if ba.Block.Header.ParentHash != parent.BlockHash {
		return &ParentBlockHashMismatchError{
			Number:       ba.Number,
			ExpectedHash: parent.BlockHash,
			ActualHash:   ba.Block.Header.ParentHash,
		}
	}
	return nil
}

// storeStateDiff appends a state diff once its matching header is
// present and its declared block hash agrees with that header. A diff
// that arrives for a block whose header hasn't synced yet, or whose
// declared hash matches neither the live header nor any known ommer
// (the central source is still mid-revert), produces
// StateDiffWithoutMatchingHeaderError -- recoverable, the processor just
// waits for the header stream to catch up. A diff whose hash matches a
// known ommer header is a late arrival for an already-reverted block and
// is filed into the ommer state-diff table instead of the live one.
func (s *GenericStateSync) storeStateDiff(ctx context.Context, sd *StateDiffAvailable) error {
	ro := s.store.BeginRO()
	headerMarker, err := ro.HeaderMarker()
	if err != nil {
		ro.Discard()
		return err
	}
	stateMarker, err := ro.StateMarker()
	if err != nil {
		ro.Discard()
		return err
	}
	if sd.Number >= headerMarker {
		ro.Discard()
		return &StateDiffWithoutMatchingHeaderError{Number: sd.Number}
	}
	if sd.Number < stateMarker {
		ro.Discard()
		return nil
	}

	header, err := ro.GetBlockHeader(sd.Number)
	if err != nil {
		ro.Discard()
		return err
	}
	if header != nil && header.BlockHash == sd.BlockHash {
		ro.Discard()
		return s.appendStateDiff(sd)
	}

	ommer, err := ro.GetOmmerHeader(sd.BlockHash)
	ro.Discard()
	if err != nil {
		return err
	}
	if ommer != nil {
		return s.insertOmmerStateDiff(sd)
	}

	// Neither the live header nor any known ommer matches; the central
	// source is mid-revert and hasn't settled on this number's diff yet.
	return &StateDiffWithoutMatchingHeaderError{Number: sd.Number}
}

func (s *GenericStateSync) appendStateDiff(sd *StateDiffAvailable) error {
	wtx := s.store.BeginRW()
	committed := false
	defer func() {
		if !committed {
			wtx.Rollback()
		}
	}()

	thin := sd.StateDiff.ToThin()
	wtx, err := wtx.AppendStateDiff(sd.Number, thin, sd.DeployedContractClasses, sd.StateDiff.DeprecatedDeclaredClasses)
	if err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return err
	}
	committed = true
	s.metrics.StateMarker.Set(float64(sd.Number + 1))
	return nil
}

func (s *GenericStateSync) insertOmmerStateDiff(sd *StateDiffAvailable) error {
	wtx := s.store.BeginRW()
	committed := false
	defer func() {
		if !committed {
			wtx.Rollback()
		}
	}()

	thin := sd.StateDiff.ToThin()
	wtx, err := wtx.InsertOmmerStateDiff(sd.BlockHash, thin, sd.DeployedContractClasses)
	if err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
