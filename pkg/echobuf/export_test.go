package echobuf

import "github.com/calvinalkan/echobuf/pkg/slotaddr"

// Export internal functions for testing.
// This file is only compiled during tests.

// EncodeRecordForTesting encodes rec in the on-backend record format.
func EncodeRecordForTesting(rec Record) []byte {
	return encodeRecord(recordState{
		namespace:    rec.Namespace,
		owner:        rec.Owner,
		seed:         rec.Seed,
		policy:       rec.Policy,
		capacity:     rec.Capacity,
		data:         rec.Data,
		written:      rec.Written,
		declaredSize: rec.DeclaredSize,
		generation:   rec.Generation,
	})
}

// DecodeRecordForTesting decodes raw as the record stored under addr.
func DecodeRecordForTesting(addr slotaddr.Address, raw []byte) (Record, error) {
	st, err := decodeRecord(addr, raw)
	if err != nil {
		return Record{}, err
	}

	return newRecord(addr, st).snapshot(), nil
}

// HeaderSizeForTesting is the fixed record header size.
const HeaderSizeForTesting = ebr1HeaderSize
