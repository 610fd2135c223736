package annex

import "github.com/jward/annex/internal/store"

// Public type aliases for internal store types used in the public API.
// These are Go type aliases (=), identical to the internal types at compile
// time, so no conversion is needed.

type Store = store.Store
type Attribute = store.Attribute
type Run = store.Run
type EffectiveAnnotation = store.EffectiveAnnotation
type DiagnosticRecord = store.DiagnosticRecord
