// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

const numShards = 32

// ExecutionContext is the host provided context of an execution.
type ExecutionContext struct {
	Caller         string
	TxHash         string
	BlockHeight    uint64
	BlockTimestamp int64
}

// DefaultExecutionContext returns the context used when none is given.
func DefaultExecutionContext() ExecutionContext {
	return ExecutionContext{Caller: "system", TxHash: "0x0"}
}

// Entry is a key value pair of a Snapshot.
type Entry struct {
	Key   string
	Value Value
}

// Snapshot is a copy of the store sorted by key.
type Snapshot []Entry

// Equal reports whether two snapshots hold equal keys and values.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Key != other[i].Key || !s[i].Value.Equal(other[i].Value) {
			return false
		}
	}
	return true
}

// RuntimeStats is a summary of a Runtime.
type RuntimeStats struct {
	FuelUsed      uint64
	FuelRemaining uint64
	FuelTotal     uint64
	ExecutionTime time.Duration
	StateSize     int
	TxID          string
}

type shard struct {
	mu sync.RWMutex
	m  map[string]Value
}

type runtimeState struct {
	shards    [numShards]shard
	fuel      *atomic.Uint64
	maxFuel   uint64
	startTime time.Time
	clock     func() time.Time
	txID      string
	ctx       ExecutionContext

	schemaMu sync.RWMutex
	schemas  map[string]map[string]Type
}

// Runtime is a handle to a concurrent key value store, a fuel counter and an
// immutable execution context. Copies made with Clone share all state.
type Runtime struct {
	state *runtimeState
}

// RuntimeOption configures a new Runtime.
type RuntimeOption func(*runtimeState)

// WithContext sets the execution context.
func WithContext(ctx ExecutionContext) RuntimeOption {
	return func(s *runtimeState) { s.ctx = ctx }
}

// WithTxID sets the transaction id instead of a generated one.
func WithTxID(id string) RuntimeOption {
	return func(s *runtimeState) { s.txID = id }
}

// WithClock sets the clock used for execution time.
func WithClock(clock func() time.Time) RuntimeOption {
	return func(s *runtimeState) { s.clock = clock }
}

// WithSchemaRegistry installs table schemas used to validate writes.
func WithSchemaRegistry(tables map[string]map[string]Type) RuntimeOption {
	return func(s *runtimeState) {
		for name, fields := range tables {
			s.schemas[name] = fields
		}
	}
}

// NewRuntime creates a new Runtime with a fuel budget.
func NewRuntime(maxFuel uint64, opts ...RuntimeOption) *Runtime {
	s := &runtimeState{
		fuel:    atomic.NewUint64(maxFuel),
		maxFuel: maxFuel,
		clock:   time.Now,
		ctx:     DefaultExecutionContext(),
		schemas: make(map[string]map[string]Type),
	}
	for i := range s.shards {
		s.shards[i].m = make(map[string]Value)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.txID == "" {
		s.txID = "tx_" + uuid.NewString()
	}
	s.startTime = s.clock()
	return &Runtime{state: s}
}

// Clone returns a handle sharing the store, fuel and context of rt.
func (rt *Runtime) Clone() *Runtime {
	return &Runtime{state: rt.state}
}

func (rt *Runtime) shard(key string) *shard {
	return &rt.state.shards[xxhash.Sum64String(key)%numShards]
}

// Read returns the value of the key.
func (rt *Runtime) Read(key string) (Value, bool) {
	sh := rt.shard(key)
	sh.mu.RLock()
	v, ok := sh.m[key]
	sh.mu.RUnlock()
	return v, ok
}

// ReadOr returns the value of the key or def if it is absent.
func (rt *Runtime) ReadOr(key string, def Value) Value {
	if v, ok := rt.Read(key); ok {
		return v
	}
	return def
}

// Write stores the value under the key.
func (rt *Runtime) Write(key string, v Value) error {
	if v == nil {
		return ErrInvalidArgument.NewError("nil value for key " + key)
	}
	sh := rt.shard(key)
	sh.mu.Lock()
	sh.m[key] = v
	sh.mu.Unlock()
	return nil
}

// Update stores v under the key and returns the replaced value. A missing
// key is inserted.
func (rt *Runtime) Update(key string, v Value) (Value, bool, error) {
	if v == nil {
		return nil, false, ErrInvalidArgument.NewError("nil value for key " + key)
	}
	sh := rt.shard(key)
	sh.mu.Lock()
	prev, ok := sh.m[key]
	sh.m[key] = v
	sh.mu.Unlock()
	return prev, ok, nil
}

// Delete removes the key and returns the removed value.
func (rt *Runtime) Delete(key string) (Value, bool, error) {
	sh := rt.shard(key)
	sh.mu.Lock()
	v, ok := sh.m[key]
	delete(sh.m, key)
	sh.mu.Unlock()
	return v, ok, nil
}

// Exists returns true if the key is present.
func (rt *Runtime) Exists(key string) bool {
	_, ok := rt.Read(key)
	return ok
}

// KeysMatching returns the sorted keys containing substr.
func (rt *Runtime) KeysMatching(substr string) []string {
	keys := []string{}
	for i := range rt.state.shards {
		sh := &rt.state.shards[i]
		sh.mu.RLock()
		for k := range sh.m {
			if strings.Contains(k, substr) {
				keys = append(keys, k)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of keys.
func (rt *Runtime) Size() int {
	var n int
	for i := range rt.state.shards {
		sh := &rt.state.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

func (rt *Runtime) lockAll() {
	for i := range rt.state.shards {
		rt.state.shards[i].mu.Lock()
	}
}

func (rt *Runtime) unlockAll() {
	for i := len(rt.state.shards) - 1; i >= 0; i-- {
		rt.state.shards[i].mu.Unlock()
	}
}

// Snapshot returns a consistent copy of the store sorted by key.
func (rt *Runtime) Snapshot() Snapshot {
	for i := range rt.state.shards {
		rt.state.shards[i].mu.RLock()
	}
	snap := make(Snapshot, 0)
	for i := range rt.state.shards {
		for k, v := range rt.state.shards[i].m {
			snap = append(snap, Entry{Key: k, Value: v})
		}
	}
	for i := len(rt.state.shards) - 1; i >= 0; i-- {
		rt.state.shards[i].mu.RUnlock()
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].Key < snap[j].Key })
	return snap
}

// Restore atomically replaces the store with the snapshot.
func (rt *Runtime) Restore(snap Snapshot) {
	var maps [numShards]map[string]Value
	for i := range maps {
		maps[i] = make(map[string]Value)
	}
	for _, e := range snap {
		maps[xxhash.Sum64String(e.Key)%numShards][e.Key] = e.Value
	}
	rt.lockAll()
	for i := range rt.state.shards {
		rt.state.shards[i].m = maps[i]
	}
	rt.unlockAll()
}

// Clear removes all keys.
func (rt *Runtime) Clear() {
	rt.Restore(nil)
}

// ConsumeFuel debits n from the remaining fuel. Fuel is not changed if n
// exceeds the remaining fuel.
func (rt *Runtime) ConsumeFuel(n uint64) error {
	fuel := rt.state.fuel
	for {
		cur := fuel.Load()
		if n > cur {
			return &FuelExceededError{
				Used:  rt.state.maxFuel - cur,
				Limit: rt.state.maxFuel,
			}
		}
		if fuel.CAS(cur, cur-n) {
			return nil
		}
	}
}

// RemainingFuel returns the fuel left.
func (rt *Runtime) RemainingFuel() uint64 {
	return rt.state.fuel.Load()
}

// FuelUsed returns the consumed fuel.
func (rt *Runtime) FuelUsed() uint64 {
	return rt.state.maxFuel - rt.state.fuel.Load()
}

// MaxFuel returns the fuel budget.
func (rt *Runtime) MaxFuel() uint64 {
	return rt.state.maxFuel
}

// FuelPercentage returns the consumed fuel as a percentage of the budget.
func (rt *Runtime) FuelPercentage() float64 {
	if rt.state.maxFuel == 0 {
		return 0
	}
	return float64(rt.FuelUsed()) / float64(rt.state.maxFuel) * 100
}

// ExecutionTime returns the time elapsed since the Runtime was created.
func (rt *Runtime) ExecutionTime() time.Duration {
	return rt.state.clock().Sub(rt.state.startTime)
}

// Context returns the execution context.
func (rt *Runtime) Context() ExecutionContext {
	return rt.state.ctx
}

// TxID returns the transaction id.
func (rt *Runtime) TxID() string {
	return rt.state.txID
}

// Stats returns a summary of the Runtime.
func (rt *Runtime) Stats() RuntimeStats {
	remaining := rt.RemainingFuel()
	return RuntimeStats{
		FuelUsed:      rt.state.maxFuel - remaining,
		FuelRemaining: remaining,
		FuelTotal:     rt.state.maxFuel,
		ExecutionTime: rt.ExecutionTime(),
		StateSize:     rt.Size(),
		TxID:          rt.state.txID,
	}
}

// RegisterTables adds table schemas to the registry shared by all clones.
func (rt *Runtime) RegisterTables(tables map[string]map[string]Type) {
	if len(tables) == 0 {
		return
	}
	rt.state.schemaMu.Lock()
	for name, fields := range tables {
		rt.state.schemas[name] = fields
	}
	rt.state.schemaMu.Unlock()
}

// TableSchema returns the registered fields of a table.
func (rt *Runtime) TableSchema(table string) (map[string]Type, bool) {
	rt.state.schemaMu.RLock()
	fields, ok := rt.state.schemas[table]
	rt.state.schemaMu.RUnlock()
	return fields, ok
}

// TableKey returns the store key of a table row.
func TableKey(table string, key Value) string {
	return table + ":" + ToString(key)
}

// WriteRow validates v against the table schema if one is registered and
// stores it.
func (rt *Runtime) WriteRow(table string, key, v Value) error {
	if fields, ok := rt.TableSchema(table); ok {
		if err := ValidateRow(v, fields); err != nil {
			return err
		}
	}
	return rt.Write(TableKey(table, key), v)
}

// UpdateRow validates v like WriteRow and replaces the row, inserting it if
// it is missing.
func (rt *Runtime) UpdateRow(table string, key, v Value) error {
	if fields, ok := rt.TableSchema(table); ok {
		if err := ValidateRow(v, fields); err != nil {
			return err
		}
	}
	_, _, err := rt.Update(TableKey(table, key), v)
	return err
}

// ReadRow returns the row or Null.
func (rt *Runtime) ReadRow(table string, key Value) Value {
	return rt.ReadOr(TableKey(table, key), Null)
}

// DeleteRow removes the row and returns it or Null.
func (rt *Runtime) DeleteRow(table string, key Value) (Value, error) {
	v, ok, err := rt.Delete(TableKey(table, key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return Null, nil
	}
	return v, nil
}
