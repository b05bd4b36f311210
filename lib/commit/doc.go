// Package commit provides the functions a listener uses to mirror a remote
// collection into local state.
//
// ICommitFunctions has four operations: Add, Update, Remove and RemoveAll.
// The package ships independent adapters for the common kinds of local state:
//
//   - NewMapCommitter: a caller owned map keyed by id
//   - NewSliceCommitter: a caller owned slice, changed in place through a pointer
//   - NewCacheCommitter: a patrickmn/go-cache instance that can be read concurrently
//   - NewMutationCommitter: an external store changed through named mutations
//     ("<partition>/ADD", ...), for example a MutationRegistry
//   - Funcs: any set of plain functions
//
// The adapters borrow the state they mirror into. They never own its lifetime.
package commit
