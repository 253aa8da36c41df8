// Package echobuf provides a keyed store of fixed-capacity byte buffers.
//
// Each buffer lives in a slot whose address is derived from a namespace, an
// owner identity and a seed (see [slotaddr.Derive]). A slot's capacity is
// chosen at creation and never changes; writes copy caller bytes into the
// pre-allocated buffer, silently truncating anything past capacity.
//
// # Basic Usage
//
//	store, err := echobuf.Open(ctx, echobuf.Options{})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	addr, err := store.Create(ctx, "echo", owner, 1, 64)
//	n, err := store.WriteOnce(ctx, "echo", owner, 1, payload)
//
// # Policies
//
// Every slot carries a [Policy] fixed at creation, picked from the
// namespace via [Options.Namespaces]:
//   - [PolicyWriteOnce]: exactly one [Store.WriteOnce] succeeds; later
//     writes return [ErrBufferOverwrite].
//   - [PolicyAuthorized]: [Store.AuthorizedWrite] fully replaces the
//     buffer any number of times, but only for the identity that created
//     the slot.
//
// Using the operation of the other policy returns [ErrPolicyMismatch].
//
// # Concurrency
//
// All methods on [Store] are safe for concurrent use. Create is atomic with
// respect to other creates and lookups of the same address, and each write
// holds the slot's lock for its whole duration, so readers never observe a
// partially written buffer.
//
// # Persistence
//
// With [Options.Backend] set, every record is written through to the backend
// before the in-memory slot changes. A failing backend leaves the slot
// byte-for-byte unchanged. [Open] loads all persisted records back.
package echobuf
