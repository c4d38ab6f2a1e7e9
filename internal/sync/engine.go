package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/config"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

// Batch groups records by kind in wire shape: five typed arrays, not
// one heterogeneous list. It carries client changes on the way in and
// server data on the way out.
type Batch struct {
	Trips       []*models.Trip       `json:"trips"`
	Days        []*models.Day        `json:"days"`
	Activities  []*models.Activity   `json:"activities"`
	BudgetItems []*models.BudgetItem `json:"budget_items"`
	Notes       []*models.Note       `json:"notes"`
}

// ByKind returns one kind's records as SyncableEntity values, in
// submission order.
func (b *Batch) ByKind(kind models.EntityType) []models.SyncableEntity {
	switch kind {
	case models.EntityTypeTrip:
		out := make([]models.SyncableEntity, 0, len(b.Trips))
		for _, r := range b.Trips {
			out = append(out, r)
		}
		return out
	case models.EntityTypeDay:
		out := make([]models.SyncableEntity, 0, len(b.Days))
		for _, r := range b.Days {
			out = append(out, r)
		}
		return out
	case models.EntityTypeActivity:
		out := make([]models.SyncableEntity, 0, len(b.Activities))
		for _, r := range b.Activities {
			out = append(out, r)
		}
		return out
	case models.EntityTypeBudgetItem:
		out := make([]models.SyncableEntity, 0, len(b.BudgetItems))
		for _, r := range b.BudgetItems {
			out = append(out, r)
		}
		return out
	case models.EntityTypeNote:
		out := make([]models.SyncableEntity, 0, len(b.Notes))
		for _, r := range b.Notes {
			out = append(out, r)
		}
		return out
	}
	return nil
}

// Add appends a record to the array matching its concrete kind.
func (b *Batch) Add(rec models.SyncableEntity) {
	switch r := rec.(type) {
	case *models.Trip:
		b.Trips = append(b.Trips, r)
	case *models.Day:
		b.Days = append(b.Days, r)
	case *models.Activity:
		b.Activities = append(b.Activities, r)
	case *models.BudgetItem:
		b.BudgetItems = append(b.BudgetItems, r)
	case *models.Note:
		b.Notes = append(b.Notes, r)
	}
}

// Size returns the total record count across all five kinds.
func (b *Batch) Size() int {
	return len(b.Trips) + len(b.Days) + len(b.Activities) + len(b.BudgetItems) + len(b.Notes)
}

// EnsureArrays replaces nil kind slices with empty ones so the wire
// format always carries five arrays, never null.
func (b *Batch) EnsureArrays() {
	if b.Trips == nil {
		b.Trips = []*models.Trip{}
	}
	if b.Days == nil {
		b.Days = []*models.Day{}
	}
	if b.Activities == nil {
		b.Activities = []*models.Activity{}
	}
	if b.BudgetItems == nil {
		b.BudgetItems = []*models.BudgetItem{}
	}
	if b.Notes == nil {
		b.Notes = []*models.Note{}
	}
}

// Result is everything one cycle hands back to the transport layer.
type Result struct {
	ServerData   *Batch
	NewWatermark time.Time
	Report       *Report
}

// Engine applies client batches against the entity store and computes
// the download set. One Engine instance serves all requests
// concurrently; it holds no mutable state of its own — everything
// lives in the store, scoped per user, and racing cycles are
// serialized per record by the store's compare-and-swap.
type Engine struct {
	store    EntityStore
	resolver *ConflictResolver
	validate *validator.Validate
	cfg      *config.SyncConfig
}

// NewEngine creates a sync engine on top of an entity store.
func NewEngine(store EntityStore, cfg *config.SyncConfig) *Engine {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	return &Engine{
		store:    store,
		resolver: NewConflictResolver(Strategy(cfg.DefaultStrategy)),
		validate: validator.New(),
		cfg:      cfg,
	}
}

// cycleState carries the bookkeeping of one cycle between the apply
// phase and the download phase.
type cycleState struct {
	report *Report

	// suppressed ids are echoes of the client's own upload (inserts,
	// client-won conflicts, identical no-ops) and are filtered out of
	// the download set.
	suppressed map[models.EntityType]map[string]bool

	// serverWon records are delivered to the losing client even when
	// their timestamp does not clear the watermark.
	serverWon map[models.EntityType]map[string]models.SyncableEntity

	// maxObserved tracks the latest local_updated_at across applied
	// and downloaded records; it becomes the new watermark.
	maxObserved time.Time
}

func newCycleState() *cycleState {
	return &cycleState{
		report:     newReport(),
		suppressed: make(map[models.EntityType]map[string]bool),
		serverWon:  make(map[models.EntityType]map[string]models.SyncableEntity),
	}
}

func (c *cycleState) suppress(kind models.EntityType, id string) {
	if c.suppressed[kind] == nil {
		c.suppressed[kind] = make(map[string]bool)
	}
	c.suppressed[kind][id] = true
}

func (c *cycleState) isSuppressed(kind models.EntityType, id string) bool {
	return c.suppressed[kind][id]
}

func (c *cycleState) forceInclude(kind models.EntityType, rec models.SyncableEntity) {
	if c.serverWon[kind] == nil {
		c.serverWon[kind] = make(map[string]models.SyncableEntity)
	}
	c.serverWon[kind][rec.GetEntityID()] = rec
}

func (c *cycleState) observe(ts time.Time) {
	if ts.After(c.maxObserved) {
		c.maxObserved = ts
	}
}

// Sync runs one reconciliation cycle for userID: apply the client's
// changes with conflict resolution, then collect everything the server
// knows that the client does not. A nil watermark means first sync —
// the download phase returns everything the user owns.
//
// Per-record problems land in the report and do not stop the batch.
// A store failure aborts the whole cycle; records already committed
// stay committed, and the client retries with the same watermark —
// safe, because applying is a diff against current server state, never
// a blind append.
func (e *Engine) Sync(ctx context.Context, userID string, watermark *time.Time, changes *Batch, strategy Strategy) (*Result, error) {
	started := time.Now().UTC()

	if changes == nil {
		changes = &Batch{}
	}
	if strategy == "" {
		strategy = Strategy(e.cfg.DefaultStrategy)
	}
	if !ValidStrategy(strategy) {
		return nil, fmt.Errorf("unknown conflict resolution strategy %q", strategy)
	}
	if max := e.cfg.MaxBatchRecords; max > 0 && changes.Size() > max {
		return nil, fmt.Errorf("batch of %d records exceeds the limit of %d", changes.Size(), max)
	}

	since := "full"
	if watermark != nil {
		since = watermark.UTC().Format(time.RFC3339)
	}
	log.Printf("🔄 Sync cycle: user=%s strategy=%s batch=%d watermark=%s", userID, strategy, changes.Size(), since)

	cycle := newCycleState()

	// Phase 1: apply client changes, kind by kind. SyncKindOrder puts
	// parents before children, so a batch carrying a new trip plus its
	// days validates in one pass. Within a kind, submission order is
	// preserved.
	for _, kind := range models.SyncKindOrder {
		for _, rec := range changes.ByKind(kind) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("sync cycle cancelled: %w", err)
			}
			if err := e.applyRecord(ctx, userID, kind, rec, strategy, cycle); err != nil {
				return nil, err
			}
		}
	}

	// Phase 2: collect the download set.
	serverData := &Batch{}
	for _, kind := range models.SyncKindOrder {
		records, err := e.store.ChangedSince(ctx, userID, kind, watermark)
		if err != nil {
			return nil, fmt.Errorf("store query for %s changes failed: %w", kind, err)
		}

		included := make(map[string]bool, len(records))
		for _, rec := range records {
			id := rec.GetEntityID()
			if cycle.isSuppressed(kind, id) {
				continue
			}
			serverData.Add(rec)
			included[id] = true
			cycle.report.Downloaded[kind]++
			cycle.observe(rec.GetLocalUpdatedAt())
		}

		// Server-won conflict records may predate the watermark (the
		// client saw them, then edited on top). They are delivered
		// regardless — the losing client has to converge now, not
		// whenever the record happens to change again.
		for id, rec := range cycle.serverWon[kind] {
			if included[id] {
				continue
			}
			serverData.Add(rec)
			cycle.report.Downloaded[kind]++
			cycle.observe(rec.GetLocalUpdatedAt())
		}
	}
	serverData.EnsureArrays()

	// Phase 3: the new watermark. Maximum timestamp touched this
	// cycle; the processing instant when nothing was; never behind the
	// incoming watermark.
	newWatermark := cycle.maxObserved
	if newWatermark.IsZero() {
		newWatermark = started
	}
	if watermark != nil && newWatermark.Before(*watermark) {
		newWatermark = watermark.UTC()
	}

	report := cycle.report
	report.SyncTimestamp = newWatermark
	report.Duration = time.Since(started)

	log.Printf("✅ Sync cycle done: user=%s uploaded=%d downloaded=%d conflicts=%d errors=%d duration=%v",
		userID, report.TotalUploaded(), report.TotalDownloaded(), report.ConflictsResolved(), len(report.Errors), report.Duration)

	return &Result{
		ServerData:   serverData,
		NewWatermark: newWatermark,
		Report:       report,
	}, nil
}

// applyRecord pushes one client record through validate → lookup →
// insert-or-resolve. It returns an error only for store-level
// failures; everything about the record itself lands in the report.
func (e *Engine) applyRecord(ctx context.Context, userID string, kind models.EntityType, rec models.SyncableEntity, strategy Strategy, cycle *cycleState) error {
	id := rec.GetEntityID()

	rec.SetUserID(userID)
	rec.SetLocalUpdatedAt(rec.GetLocalUpdatedAt().UTC())

	if err := e.validateRecord(ctx, userID, rec); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			cycle.report.addError(kind, id, verr)
			log.Printf("⚠️  Rejected %s %s: %v", kind, id, verr)
			return nil
		}
		return fmt.Errorf("validation of %s %s hit the store: %w", kind, id, err)
	}

	for attempt := 0; ; attempt++ {
		if attempt > e.cfg.MaxCASRetries {
			cycle.report.addError(kind, id, fmt.Errorf("record kept changing under concurrent syncs, gave up after %d attempts", attempt))
			log.Printf("⚠️  Contention on %s %s: gave up after %d attempts", kind, id, attempt)
			return nil
		}

		server, err := e.store.Get(ctx, userID, kind, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("store lookup for %s %s failed: %w", kind, id, err)
		}

		if errors.Is(err, ErrNotFound) {
			// Never-seen id: insert as-is. Tombstones are inserted
			// too, so the deletion history survives even when the
			// delete is the first thing the server hears about the
			// record, and a later id reuse cannot resurrect silently.
			if err := e.store.Insert(ctx, rec); err != nil {
				if errors.Is(err, ErrDuplicateID) {
					// Another device created it between our lookup and
					// the insert. Re-read and resolve properly.
					continue
				}
				return fmt.Errorf("store insert for %s %s failed: %w", kind, id, err)
			}
			cycle.report.Uploaded[kind]++
			cycle.suppress(kind, id)
			cycle.observe(rec.GetLocalUpdatedAt())
			return nil
		}

		// Conflict detection is structural: compare substantive
		// fields, not timestamps. The client re-sending what the
		// server already has is a no-op, not a conflict.
		same, err := SameContent(rec, server)
		if err != nil {
			return fmt.Errorf("content comparison for %s %s failed: %w", kind, id, err)
		}
		if same {
			cycle.suppress(kind, id)
			return nil
		}

		res := e.resolver.Resolve(rec, server, strategy)

		if res.WinnerSource == WinnerServer {
			// Nothing to write; the server copy stands. The losing
			// client learns about it through the download phase.
			cycle.report.addConflict(kind, id, res)
			cycle.forceInclude(kind, server)
			cycle.observe(server.GetLocalUpdatedAt())
			return nil
		}

		// Client won: replace the record, guarded by the timestamp we
		// resolved against. The winner keeps its own local_updated_at.
		if err := e.store.Update(ctx, rec, server.GetLocalUpdatedAt()); err != nil {
			if errors.Is(err, ErrStaleRecord) {
				// A concurrent cycle changed the record after our
				// read. Re-read and resolve against the fresh state.
				continue
			}
			return fmt.Errorf("store update for %s %s failed: %w", kind, id, err)
		}
		cycle.report.addConflict(kind, id, res)
		cycle.report.Uploaded[kind]++
		cycle.suppress(kind, id)
		cycle.observe(rec.GetLocalUpdatedAt())
		return nil
	}
}

// validateRecord rejects what must never reach the store: malformed
// fields, empty timestamps, cross-kind id reuse, and parent references
// that do not resolve within the user's own data. Returns a
// *ValidationError for per-record rejection; any other error is a
// store failure.
func (e *Engine) validateRecord(ctx context.Context, userID string, rec models.SyncableEntity) error {
	if rec.GetEntityID() == "" {
		return &ValidationError{Reason: "record has no id"}
	}
	if rec.GetLocalUpdatedAt().IsZero() {
		return &ValidationError{Reason: "record has no local_updated_at timestamp"}
	}

	if err := e.validate.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			f := fieldErrs[0]
			return &ValidationError{Reason: fmt.Sprintf("field %s failed %q validation", f.Field(), f.Tag())}
		}
		return &ValidationError{Reason: err.Error()}
	}

	kind := rec.GetEntityType()
	if !models.ValidEntityType(kind) {
		return &ValidationError{Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	}

	otherKind, used, err := e.store.IDUsedByOtherKind(ctx, userID, kind, rec.GetEntityID())
	if err != nil {
		return fmt.Errorf("identity probe failed: %w", err)
	}
	if used {
		return &ValidationError{Reason: fmt.Sprintf("id already belongs to a %s record", otherKind)}
	}

	// Parent references must resolve inside the same user's data. A
	// tombstoned parent still resolves — its deletion may yet be
	// resurrected, and orphan cleanup is the client's concern.
	if child, ok := rec.(models.ChildRecord); ok {
		parentKind, parentID := child.ParentRef()
		if parentID == "" {
			return &ValidationError{Reason: "no parent reference set"}
		}
		if _, err := e.store.Get(ctx, userID, parentKind, parentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return &ValidationError{Reason: fmt.Sprintf("parent %s %q does not exist", parentKind, parentID)}
			}
			return fmt.Errorf("parent lookup failed: %w", err)
		}
	}

	return nil
}
