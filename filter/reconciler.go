package filter

import (
	"context"
	"strings"
	"sync"

	apperrors "datachat/errors"

	"go.uber.org/zap"
)

// Source identifies which data-source family currently drives the
// conversation. Only one source may hold predicate values at a time.
type Source string

const (
	SourceNone Source = "none"
	SourceSQL  Source = "sql"
	SourceFile Source = "file"
)

// ActiveDataset is the finalized, persisted filter selection driving the
// conversation's data context. Display-mode state never appears here.
type ActiveDataset struct {
	Source       Source           `json:"source"`
	Items        []string         `json:"items"`
	GroupColumns []string         `json:"group_columns"`
	Predicates   map[string]Value `json:"predicates"`
}

// Loader validates and loads a finalized dataset selection before it is
// committed, typically by issuing the dataset-loading query.
type Loader interface {
	LoadActive(ctx context.Context, ds ActiveDataset) error
}

// ActiveStore persists the finalized active-dataset record.
type ActiveStore interface {
	SaveActiveDataset(ctx context.Context, chatID string, ds ActiveDataset) error
}

// Snapshot is the per-chat persisted form of the reconciler state.
type Snapshot struct {
	Active    Source   `json:"active"`
	SQL       *Set     `json:"sql"`
	File      *Set     `json:"file"`
	SQLItems  []string `json:"sql_items"`
	FileItems []string `json:"file_items"`
}

// Reconciler owns the two filter sets and the active-source marker, and is
// the only writer of either. It enforces predicate exclusivity between the
// SQL-backed and file-backed sources and keeps multi-column combination
// arrays index-aligned.
type Reconciler struct {
	mu        sync.Mutex
	logger    *zap.Logger
	sqlSet    *Set
	fileSet   *Set
	sqlItems  []string
	fileItems []string
	active    Source
	epoch     uint64
	threshold int
	loader    Loader
	store     ActiveStore
	events    *Broadcaster
}

// NewReconciler creates a reconciler with empty state. selectAllThreshold is
// the batch-selection size above which a column collapses to the select-all
// sentinel.
func NewReconciler(loader Loader, store ActiveStore, events *Broadcaster, selectAllThreshold int, logger *zap.Logger) *Reconciler {
	if selectAllThreshold <= 0 {
		selectAllThreshold = 10000
	}
	return &Reconciler{
		logger:    logger,
		sqlSet:    NewSet(),
		fileSet:   NewSet(),
		active:    SourceNone,
		threshold: selectAllThreshold,
		loader:    loader,
		store:     store,
		events:    events,
	}
}

func (r *Reconciler) setFor(src Source) *Set {
	if src == SourceFile {
		return r.fileSet
	}
	return r.sqlSet
}

// Epoch returns a counter incremented on every mutation. Resolver callers
// capture it before an async call and discard late results when it moved.
func (r *Reconciler) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// StillCurrent reports whether no mutation happened since epoch was captured.
func (r *Reconciler) StillCurrent(epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch == epoch
}

// Active returns the source currently driving the conversation.
func (r *Reconciler) Active() Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetState returns a copy of the filter set for a source.
func (r *Reconciler) SetState(src Source) *Set {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setFor(src).Clone()
}

// Items returns the picked files or SQL targets for a source.
func (r *Reconciler) Items(src Source) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []string
	if src == SourceFile {
		items = r.fileItems
	} else {
		items = r.sqlItems
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}

// SelectColumns replaces the selected columns of one source.
func (r *Reconciler) SelectColumns(src Source, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setFor(src).SetColumns(names)
	r.reconcileLocked(src)
}

// SetColumnMode changes group/display mode of a column.
func (r *Reconciler) SetColumnMode(src Source, column string, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setFor(src).SetColumnMode(column, mode)
	r.reconcileLocked(src)
}

// SelectValue toggles a value for a column. With a single group column the
// value is a plain column value; with multiple group columns it is a
// comma-joined combination that is added or removed at the same index across
// every group column's array. Toggles addressed at a display-mode column are
// ignored; those columns never hold predicates.
func (r *Reconciler) SelectValue(src Source, column, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.setFor(src)
	if mode, ok := set.ColumnMode(column); ok && mode == ModeDisplay {
		r.logger.Warn("Ignoring value toggle on display column", zap.String("column", column))
		return
	}
	groupCols := set.GroupColumns()
	if len(groupCols) > 1 {
		r.toggleCombinationLocked(set, groupCols, value)
	} else {
		r.toggleSingleLocked(set, column, value)
	}
	r.reconcileLocked(src)
}

func (r *Reconciler) toggleSingleLocked(set *Set, column, value string) {
	current, ok := set.Values[column]
	if !ok {
		current = NoValue()
	}
	switch current.Kind {
	case ValueNone:
		set.Values[column] = ScalarValue(value)
	case ValueAll:
		// Explicit single toggle clears the sentinel back to one value.
		set.Values[column] = ScalarValue(value)
	case ValueScalar:
		if current.Scalar == value {
			delete(set.Values, column)
		} else {
			set.Values[column] = ListValue(current.Scalar, value)
		}
	case ValueList:
		idx := -1
		for i, item := range current.List {
			if item == value {
				idx = i
				break
			}
		}
		if idx >= 0 {
			list := append(current.List[:idx:idx], current.List[idx+1:]...)
			if len(list) == 0 {
				delete(set.Values, column)
			} else {
				set.Values[column] = Value{Kind: ValueList, List: list}
			}
		} else {
			set.Values[column] = Value{Kind: ValueList, List: append(current.List, value)}
		}
	}
}

// toggleCombinationLocked adds or removes a comma-joined combination. The
// matching index is located across all group columns before any column is
// mutated, so the arrays cannot desynchronize.
func (r *Reconciler) toggleCombinationLocked(set *Set, groupCols []string, combo string) {
	parts := SplitCombination(combo)
	if len(parts) != len(groupCols) {
		r.logger.Warn("Combination arity does not match group columns",
			zap.String("combination", combo),
			zap.Int("group_columns", len(groupCols)))
		return
	}

	// Normalize every group column to an aligned list representation.
	length := 0
	lists := make(map[string][]string, len(groupCols))
	for i, col := range groupCols {
		v := set.Values[col]
		list := v.Values()
		if i == 0 {
			length = len(list)
		} else if len(list) != length {
			// A desynchronized state should be unreachable; rebuild empty
			// rather than guessing pairings.
			r.logger.Error("Combination arrays out of alignment, resetting",
				zap.String("column", col),
				zap.Int("len", len(list)),
				zap.Int("expected", length))
			length = 0
			lists = make(map[string][]string, len(groupCols))
			for _, c := range groupCols {
				lists[c] = nil
			}
			break
		}
		lists[col] = list
	}

	// Locate the combination's index, if present.
	match := -1
	for idx := 0; idx < length; idx++ {
		found := true
		for i, col := range groupCols {
			if lists[col][idx] != parts[i] {
				found = false
				break
			}
		}
		if found {
			match = idx
			break
		}
	}

	if match >= 0 {
		for _, col := range groupCols {
			list := lists[col]
			lists[col] = append(list[:match:match], list[match+1:]...)
		}
	} else {
		for i, col := range groupCols {
			lists[col] = append(lists[col], parts[i])
		}
	}

	for _, col := range groupCols {
		if len(lists[col]) == 0 {
			delete(set.Values, col)
		} else {
			set.Values[col] = Value{Kind: ValueList, List: lists[col]}
		}
	}
}

// BatchSelectValues selects or deselects many values of a column at once.
// When selecting would exceed the threshold the column collapses to the
// select-all sentinel instead of materializing the list. Batches addressed
// at a display-mode column are ignored.
func (r *Reconciler) BatchSelectValues(src Source, column string, values []string, selected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.setFor(src)
	if mode, ok := set.ColumnMode(column); ok && mode == ModeDisplay {
		r.logger.Warn("Ignoring batch selection on display column", zap.String("column", column))
		return
	}
	groupCols := set.GroupColumns()

	if selected {
		current := set.Values[column].Values()
		seen := make(map[string]bool, len(current)+len(values))
		merged := make([]string, 0, len(current)+len(values))
		for _, v := range current {
			if !seen[v] {
				seen[v] = true
				merged = append(merged, v)
			}
		}
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				merged = append(merged, v)
			}
		}
		if len(merged) > r.threshold {
			if len(groupCols) > 1 {
				for _, col := range groupCols {
					set.Values[col] = AllValue()
				}
			} else {
				set.Values[column] = AllValue()
			}
			r.logger.Debug("Batch selection collapsed to select-all sentinel",
				zap.String("column", column),
				zap.Int("count", len(merged)))
		} else if len(groupCols) > 1 {
			for _, combo := range values {
				if !r.combinationSelectedLocked(set, groupCols, combo) {
					r.toggleCombinationLocked(set, groupCols, combo)
				}
			}
		} else {
			set.Values[column] = Value{Kind: ValueList, List: merged}
		}
	} else {
		current, ok := set.Values[column]
		if ok && current.Kind == ValueAll {
			// Deselecting against the sentinel is an explicit clear.
			delete(set.Values, column)
		} else if len(groupCols) > 1 {
			for _, combo := range values {
				if r.combinationSelectedLocked(set, groupCols, combo) {
					r.toggleCombinationLocked(set, groupCols, combo)
				}
			}
		} else if ok {
			remove := make(map[string]bool, len(values))
			for _, v := range values {
				remove[v] = true
			}
			var kept []string
			for _, v := range current.Values() {
				if !remove[v] {
					kept = append(kept, v)
				}
			}
			if len(kept) == 0 {
				delete(set.Values, column)
			} else {
				set.Values[column] = Value{Kind: ValueList, List: kept}
			}
		}
	}
	r.reconcileLocked(src)
}

func (r *Reconciler) combinationSelectedLocked(set *Set, groupCols []string, combo string) bool {
	parts := SplitCombination(combo)
	if len(parts) != len(groupCols) {
		return false
	}
	first := set.Values[groupCols[0]].Values()
	for idx := range first {
		found := true
		for i, col := range groupCols {
			list := set.Values[col].Values()
			if idx >= len(list) || list[idx] != parts[i] {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

// IsSelected reports whether a value (or combination) is currently selected
// for a column of the given source.
func (r *Reconciler) IsSelected(src Source, column, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.setFor(src)
	groupCols := set.GroupColumns()
	if len(groupCols) > 1 {
		if v, ok := set.Values[groupCols[0]]; ok && v.Kind == ValueAll {
			return true
		}
		return r.combinationSelectedLocked(set, groupCols, value)
	}
	return set.Values[column].Contains(value)
}

// ToggleSourceItem picks or unpicks a file or SQL target for a source.
func (r *Reconciler) ToggleSourceItem(src Source, item string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.sqlItems
	if src == SourceFile {
		items = r.fileItems
	}
	idx := -1
	for i, existing := range items {
		if existing == item {
			idx = i
			break
		}
	}
	if idx >= 0 {
		items = append(items[:idx:idx], items[idx+1:]...)
	} else {
		items = append(items, item)
	}
	if src == SourceFile {
		r.fileItems = items
	} else {
		r.sqlItems = items
	}
	r.epoch++
}

// ClearSelection drops all state of one source: columns, values, and the
// picked items. If that source was active, the active marker resets.
func (r *Reconciler) ClearSelection(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src == SourceFile {
		r.fileSet = NewSet()
		r.fileItems = nil
	} else {
		r.sqlSet = NewSet()
		r.sqlItems = nil
	}
	if r.active == src {
		r.active = SourceNone
	}
	r.epoch++
}

// reconcileLocked enforces predicate exclusivity after a mutation: the
// source that just gained predicates becomes active and the other source
// loses its predicate values while keeping columns and items.
func (r *Reconciler) reconcileLocked(src Source) {
	r.epoch++
	set := r.setFor(src)
	if set.HasPredicates() {
		r.active = src
		if src == SourceFile {
			r.sqlSet.ClearPredicates()
		} else {
			r.fileSet.ClearPredicates()
		}
		return
	}
	if r.active == src {
		r.active = SourceNone
	}
}

// Finalize snapshots the active source's group columns and predicates into
// an immutable active-dataset record, loads and persists it, and only then
// strips display-mode state from the source's filter set. A load or persist
// failure leaves all state untouched and the prior record in effect.
func (r *Reconciler) Finalize(ctx context.Context, chatID string) (ActiveDataset, error) {
	r.mu.Lock()
	if r.active == SourceNone {
		r.mu.Unlock()
		return ActiveDataset{}, apperrors.WrapError(apperrors.ErrInvalidInput, "no active data selection to finalize")
	}
	src := r.active
	set := r.setFor(src)
	items := r.sqlItems
	if src == SourceFile {
		items = r.fileItems
	}
	ds := ActiveDataset{
		Source:       src,
		Items:        append([]string(nil), items...),
		GroupColumns: set.GroupColumns(),
		Predicates:   set.Predicates(),
	}
	r.mu.Unlock()

	if r.loader != nil {
		if err := r.loader.LoadActive(ctx, ds); err != nil {
			r.logger.Error("Finalize dataset load failed", zap.Error(err), zap.String("chat_id", chatID))
			return ActiveDataset{}, apperrors.WrapError(apperrors.ErrFinalize, err.Error())
		}
	}
	if r.store != nil {
		if err := r.store.SaveActiveDataset(ctx, chatID, ds); err != nil {
			r.logger.Error("Finalize persistence failed", zap.Error(err), zap.String("chat_id", chatID))
			return ActiveDataset{}, apperrors.WrapError(apperrors.ErrFinalize, err.Error())
		}
	}

	// Commit: finalization is the only place display-mode state is dropped.
	// The lock was released across the load, so the selection may have been
	// cleared, restored, or taken over by the other source in the meantime;
	// in that case the persisted record stands but the live state is left
	// alone.
	r.mu.Lock()
	if r.active == src && r.setFor(src) == set {
		groupOnly := make([]Column, 0, len(set.Columns))
		for _, c := range set.Columns {
			if c.Mode != ModeDisplay {
				groupOnly = append(groupOnly, c)
			}
		}
		set.Columns = groupOnly
		set.DisplayValues = make(map[string]string)
		r.epoch++
	} else {
		r.logger.Warn("Selection changed during finalize, skipping display-state strip",
			zap.String("chat_id", chatID), zap.String("source", string(src)))
	}
	r.mu.Unlock()

	if r.events != nil {
		r.events.Publish(ds)
	}
	return ds, nil
}

// Snapshot captures the full reconciler state for per-chat persistence.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Active:    r.active,
		SQL:       r.sqlSet.Clone(),
		File:      r.fileSet.Clone(),
		SQLItems:  append([]string(nil), r.sqlItems...),
		FileItems: append([]string(nil), r.fileItems...),
	}
}

// Restore replaces the reconciler state from a persisted snapshot. A nil
// snapshot resets to empty, the state of a chat without persisted filters.
func (r *Reconciler) Restore(snap *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap == nil {
		r.sqlSet = NewSet()
		r.fileSet = NewSet()
		r.sqlItems = nil
		r.fileItems = nil
		r.active = SourceNone
		r.epoch++
		return
	}
	r.active = snap.Active
	r.sqlSet = NewSet()
	if snap.SQL != nil {
		r.sqlSet = snap.SQL.Clone()
	}
	r.fileSet = NewSet()
	if snap.File != nil {
		r.fileSet = snap.File.Clone()
	}
	r.sqlItems = append([]string(nil), snap.SQLItems...)
	r.fileItems = append([]string(nil), snap.FileItems...)
	r.epoch++
}

// SplitCombination parses a comma-joined combination back into its parts,
// trimming the join spacing. Tuple rendering uses a fixed column order so
// this round-trips unambiguously.
func SplitCombination(combo string) []string {
	raw := strings.Split(combo, ",")
	parts := make([]string, len(raw))
	for i, p := range raw {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
