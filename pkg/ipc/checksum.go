package ipc

import (
	"hash/crc32"
	"strings"
)

// Checksum selects the integrity algorithm. All algorithms run over the
// big-endian id bytes followed by the payload.
type Checksum int

const (
	// ChecksumXOR8 folds every byte with XOR into 8 bits. Two flips of the
	// same bit in different bytes cancel out and go undetected.
	ChecksumXOR8 Checksum = iota
	// ChecksumSum16 adds every byte into 16 bits. Reordered bytes go
	// undetected.
	ChecksumSum16
	// ChecksumCRC32 is IEEE CRC-32.
	ChecksumCRC32
)

// DefaultChecksum is used when nothing is configured.
const DefaultChecksum = ChecksumXOR8

var checksumNames = map[Checksum]string{
	ChecksumXOR8:  "xor8",
	ChecksumSum16: "sum16",
	ChecksumCRC32: "crc32",
}

// String implements fmt.Stringer.
func (c Checksum) String() string {
	if name, ok := checksumNames[c]; ok {
		return name
	}
	return "unknown"
}

// IsValid indicates the algorithm is supported.
func (c Checksum) IsValid() bool {
	_, ok := checksumNames[c]
	return ok
}

// ParseChecksum looks up an algorithm by name.
func ParseChecksum(name string) (Checksum, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range checksumNames {
		if n == name {
			return c, nil
		}
	}
	return 0, &ConfigError{Field: "checksum", Value: name, Err: ErrUnknownChecksum}
}

// Compute calculates the checksum of id and payload.
func (c Checksum) Compute(id MessageID, payload []byte) uint32 {
	hi, lo := byte(id>>8), byte(id)
	switch c {
	case ChecksumSum16:
		sum := uint16(hi) + uint16(lo)
		for _, b := range payload {
			sum += uint16(b)
		}
		return uint32(sum)
	case ChecksumCRC32:
		crc := crc32.Update(0, crc32.IEEETable, []byte{hi, lo})
		return crc32.Update(crc, crc32.IEEETable, payload)
	default:
		sum := hi ^ lo
		for _, b := range payload {
			sum ^= b
		}
		return uint32(sum)
	}
}

// Stamp constructs a message with its checksum computed.
func (c Checksum) Stamp(id MessageID, payload []byte) Message {
	return Message{ID: id, Payload: payload, Checksum: c.Compute(id, payload)}
}

// Verify recomputes the checksum of msg and compares.
func (c Checksum) Verify(msg Message) bool {
	return c.Compute(msg.ID, msg.Payload) == msg.Checksum
}
