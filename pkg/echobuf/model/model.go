// Package model provides a deliberately simple, in-memory state model of
// echobuf's publicly observable behavior.
//
// The model favors clarity over performance: slots are plain structs in a
// map, data is a resizable slice, and there is no locking or persistence.
package model

import (
	"bytes"
	"slices"

	"github.com/calvinalkan/echobuf/pkg/echobuf"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// Slot is the model state of one slot.
type Slot struct {
	Namespace  string
	Owner      []byte
	Seed       uint64
	Policy     echobuf.Policy
	Capacity   uint64
	Data       []byte
	Written    bool
	Generation uint64
}

// StoreModel tracks every slot by derived address.
type StoreModel struct {
	MaxCapacity   uint64
	Namespaces    map[string]echobuf.Policy
	DefaultPolicy echobuf.Policy
	Slots         map[slotaddr.Address]*Slot
	IsClosed      bool
}

// New returns an empty model using the same defaults as [echobuf.Open].
// Options are assumed valid.
func New(opts echobuf.Options) *StoreModel {
	m := &StoreModel{
		MaxCapacity:   opts.MaxCapacity,
		Namespaces:    echobuf.DefaultNamespaces(),
		DefaultPolicy: opts.DefaultPolicy,
		Slots:         make(map[slotaddr.Address]*Slot),
	}

	if m.MaxCapacity == 0 {
		m.MaxCapacity = echobuf.MaxCapacityLimit
	}

	if m.DefaultPolicy == 0 {
		m.DefaultPolicy = echobuf.PolicyWriteOnce
	}

	for ns, policy := range opts.Namespaces {
		m.Namespaces[ns] = policy
	}

	return m
}

// Close marks the model closed.
func (m *StoreModel) Close() {
	m.IsClosed = true
}

// Create registers a zero-length slot.
func (m *StoreModel) Create(namespace string, owner []byte, seed, capacity uint64) (slotaddr.Address, error) {
	if m.IsClosed {
		return slotaddr.Address{}, echobuf.ErrClosed
	}

	if namespace == "" || len(namespace) > 64 || len(owner) > 1024 {
		return slotaddr.Address{}, echobuf.ErrInvalidInput
	}

	if capacity == 0 || capacity > m.MaxCapacity {
		return slotaddr.Address{}, echobuf.ErrInvalidCapacity
	}

	addr := slotaddr.Derive(namespace, owner, seed)
	if _, ok := m.Slots[addr]; ok {
		return slotaddr.Address{}, echobuf.ErrAlreadyExists
	}

	policy, ok := m.Namespaces[namespace]
	if !ok {
		policy = m.DefaultPolicy
	}

	m.Slots[addr] = &Slot{
		Namespace: namespace,
		Owner:     bytes.Clone(owner),
		Seed:      seed,
		Policy:    policy,
		Capacity:  capacity,
	}

	return addr, nil
}

// WriteOnce applies a one-shot write.
func (m *StoreModel) WriteOnce(namespace string, owner []byte, seed uint64, payload []byte) (int, error) {
	slot, err := m.lookup(namespace, owner, seed)
	if err != nil {
		return 0, err
	}

	if slot.Policy != echobuf.PolicyWriteOnce {
		return 0, echobuf.ErrPolicyMismatch
	}

	if slot.Written {
		return 0, echobuf.ErrBufferOverwrite
	}

	slot.Written = true

	return slot.replace(payload), nil
}

// AuthorizedWrite applies an owner-gated full replace.
func (m *StoreModel) AuthorizedWrite(namespace string, owner []byte, seed uint64, payload, caller []byte) (int, error) {
	slot, err := m.lookup(namespace, owner, seed)
	if err != nil {
		return 0, err
	}

	if slot.Policy != echobuf.PolicyAuthorized {
		return 0, echobuf.ErrPolicyMismatch
	}

	if !bytes.Equal(slot.Owner, caller) {
		return 0, echobuf.ErrUnauthorized
	}

	return slot.replace(payload), nil
}

func (m *StoreModel) lookup(namespace string, owner []byte, seed uint64) (*Slot, error) {
	if m.IsClosed {
		return nil, echobuf.ErrClosed
	}

	slot, ok := m.Slots[slotaddr.Derive(namespace, owner, seed)]
	if !ok {
		return nil, echobuf.ErrNotFound
	}

	return slot, nil
}

func (s *Slot) replace(payload []byte) int {
	n := min(uint64(len(payload)), s.Capacity)
	s.Data = bytes.Clone(payload[:n])
	s.Generation++

	return int(n)
}

// Records returns the observable state in the same shape and order as
// [echobuf.Store.Records].
func (m *StoreModel) Records() []echobuf.Record {
	out := make([]echobuf.Record, 0, len(m.Slots))

	for addr, slot := range m.Slots {
		rec := echobuf.Record{
			Address:    addr,
			Namespace:  slot.Namespace,
			Owner:      bytes.Clone(slot.Owner),
			Seed:       slot.Seed,
			Policy:     slot.Policy,
			Capacity:   slot.Capacity,
			Data:       bytes.Clone(slot.Data),
			Written:    slot.Written,
			Generation: slot.Generation,
		}

		if slot.Policy == echobuf.PolicyAuthorized {
			rec.OwnerSeed = slot.Seed
			rec.DeclaredSize = slot.Capacity
		}

		out = append(out, rec)
	}

	slices.SortFunc(out, func(a, b echobuf.Record) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})

	return out
}
