package model

// SequenceCounter is a monotonic id source for one scope.  MaxValue of
// zero means the bound is derived from Width (or unbounded when Width is
// zero as well).
type SequenceCounter struct {
    ScopeKey     string // sequence_counters.scope_key
    Prefix       string // sequence_counters.prefix
    Width        int    // sequence_counters.width
    CurrentValue int64  // sequence_counters.current_value
    MaxValue     int64  // sequence_counters.max_value (0 when NULL)
}
