package echobuf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"slices"

	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// EBR1 record format constants.
const (
	ebr1Magic   = "EBR1"
	ebr1Version = 1

	// Fixed header size in bytes.
	ebr1HeaderSize = 0x38

	// Trailing CRC32-C size in bytes.
	ebr1TrailerSize = 4

	// Record flags.
	ebr1FlagWritten uint8 = 1 << 0
)

// Header field offsets (bytes from record start).
const (
	offMagic        = 0x00 // [4]byte
	offVersion      = 0x04 // uint16
	offPolicy       = 0x06 // uint8
	offFlags        = 0x07 // uint8
	offCapacity     = 0x08 // uint64
	offLength       = 0x10 // uint64
	offSeed         = 0x18 // uint64
	offDeclaredSize = 0x20 // uint64
	offGeneration   = 0x28 // uint64
	offNamespaceLen = 0x30 // uint16
	offOwnerLen     = 0x32 // uint16
	offReserved     = 0x34 // uint32, must be zero
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// recordState is the complete persisted state of one slot.
//
// data is the written prefix only; the encoded form pads it with zeros up to
// capacity so the on-disk size of a record never changes.
type recordState struct {
	namespace    string
	owner        []byte
	seed         uint64
	policy       Policy
	capacity     uint64
	data         []byte
	written      bool
	declaredSize uint64
	generation   uint64
}

func encodeRecord(st recordState) []byte {
	size := ebr1HeaderSize + len(st.namespace) + len(st.owner) + int(st.capacity) + ebr1TrailerSize
	buf := make([]byte, size)

	copy(buf[offMagic:], ebr1Magic)
	binary.LittleEndian.PutUint16(buf[offVersion:], ebr1Version)
	buf[offPolicy] = byte(st.policy)

	if st.written {
		buf[offFlags] |= ebr1FlagWritten
	}

	binary.LittleEndian.PutUint64(buf[offCapacity:], st.capacity)
	binary.LittleEndian.PutUint64(buf[offLength:], uint64(len(st.data)))
	binary.LittleEndian.PutUint64(buf[offSeed:], st.seed)
	binary.LittleEndian.PutUint64(buf[offDeclaredSize:], st.declaredSize)
	binary.LittleEndian.PutUint64(buf[offGeneration:], st.generation)
	binary.LittleEndian.PutUint16(buf[offNamespaceLen:], uint16(len(st.namespace)))
	binary.LittleEndian.PutUint16(buf[offOwnerLen:], uint16(len(st.owner)))

	pos := ebr1HeaderSize
	pos += copy(buf[pos:], st.namespace)
	pos += copy(buf[pos:], st.owner)
	copy(buf[pos:], st.data)

	crcAt := size - ebr1TrailerSize
	binary.LittleEndian.PutUint32(buf[crcAt:], crc32.Checksum(buf[:crcAt], castagnoli))

	return buf
}

// decodeRecord validates raw as the record stored under addr.
// All failures wrap ErrCorrupt.
func decodeRecord(addr slotaddr.Address, raw []byte) (recordState, error) {
	if len(raw) < ebr1HeaderSize+ebr1TrailerSize {
		return recordState{}, fmt.Errorf("record %s: %d bytes is shorter than header: %w", addr, len(raw), ErrCorrupt)
	}

	if string(raw[offMagic:offMagic+4]) != ebr1Magic {
		return recordState{}, fmt.Errorf("record %s: bad magic: %w", addr, ErrCorrupt)
	}

	crcAt := len(raw) - ebr1TrailerSize
	if crc32.Checksum(raw[:crcAt], castagnoli) != binary.LittleEndian.Uint32(raw[crcAt:]) {
		return recordState{}, fmt.Errorf("record %s: checksum mismatch: %w", addr, ErrCorrupt)
	}

	if v := binary.LittleEndian.Uint16(raw[offVersion:]); v != ebr1Version {
		return recordState{}, fmt.Errorf("record %s: unsupported version %d: %w", addr, v, ErrCorrupt)
	}

	st := recordState{
		policy:       Policy(raw[offPolicy]),
		capacity:     binary.LittleEndian.Uint64(raw[offCapacity:]),
		seed:         binary.LittleEndian.Uint64(raw[offSeed:]),
		declaredSize: binary.LittleEndian.Uint64(raw[offDeclaredSize:]),
		generation:   binary.LittleEndian.Uint64(raw[offGeneration:]),
	}

	flags := raw[offFlags]
	length := binary.LittleEndian.Uint64(raw[offLength:])
	nsLen := int(binary.LittleEndian.Uint16(raw[offNamespaceLen:]))
	ownerLen := int(binary.LittleEndian.Uint16(raw[offOwnerLen:]))

	switch {
	case !st.policy.valid():
		return recordState{}, fmt.Errorf("record %s: unknown policy %d: %w", addr, st.policy, ErrCorrupt)
	case flags&^ebr1FlagWritten != 0:
		return recordState{}, fmt.Errorf("record %s: unknown flags %#x: %w", addr, flags, ErrCorrupt)
	case binary.LittleEndian.Uint32(raw[offReserved:]) != 0:
		return recordState{}, fmt.Errorf("record %s: reserved bytes set: %w", addr, ErrCorrupt)
	case st.capacity == 0 || st.capacity > maxCapacityBytes:
		return recordState{}, fmt.Errorf("record %s: capacity %d out of range: %w", addr, st.capacity, ErrCorrupt)
	case length > st.capacity:
		return recordState{}, fmt.Errorf("record %s: length %d exceeds capacity %d: %w", addr, length, st.capacity, ErrCorrupt)
	case nsLen == 0 || nsLen > maxNamespaceBytes || ownerLen > maxOwnerBytes:
		return recordState{}, fmt.Errorf("record %s: identity lengths %d/%d out of range: %w", addr, nsLen, ownerLen, ErrCorrupt)
	}

	want := ebr1HeaderSize + nsLen + ownerLen + int(st.capacity) + ebr1TrailerSize
	if len(raw) != want {
		return recordState{}, fmt.Errorf("record %s: size %d, want %d: %w", addr, len(raw), want, ErrCorrupt)
	}

	pos := ebr1HeaderSize
	st.namespace = string(raw[pos : pos+nsLen])
	pos += nsLen
	st.owner = bytes.Clone(raw[pos : pos+ownerLen])
	pos += ownerLen

	body := raw[pos : pos+int(st.capacity)]
	if slices.ContainsFunc(body[length:], func(b byte) bool { return b != 0 }) {
		return recordState{}, fmt.Errorf("record %s: non-zero bytes past length: %w", addr, ErrCorrupt)
	}

	st.data = bytes.Clone(body[:length])
	st.written = flags&ebr1FlagWritten != 0

	switch st.policy {
	case PolicyWriteOnce:
		if st.declaredSize != 0 {
			return recordState{}, fmt.Errorf("record %s: declared size on write-once slot: %w", addr, ErrCorrupt)
		}
	case PolicyAuthorized:
		if st.written || st.declaredSize != st.capacity {
			return recordState{}, fmt.Errorf("record %s: inconsistent authorized metadata: %w", addr, ErrCorrupt)
		}
	}

	if slotaddr.Derive(st.namespace, st.owner, st.seed) != addr {
		return recordState{}, fmt.Errorf("record %s: stored inputs derive a different address: %w", addr, ErrCorrupt)
	}

	return st, nil
}
