package proxy

import "github.com/remlink/rlg/internal/dwarfgraph"

// decodeInt decodes b (len(b) == size, big- or little-endian per graph's
// target byte order) as a signed or unsigned integer, sign-extending to
// int64 when signed.
func decodeInt(graph *dwarfgraph.Graph, b []byte, signed bool) int64 {
	var u uint64
	switch len(b) {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(graph.ByteOrder.Uint16(b))
	case 4:
		u = uint64(graph.ByteOrder.Uint32(b))
	case 8:
		u = graph.ByteOrder.Uint64(b)
	default:
		// Odd widths (e.g. a 3-byte bitfield-backed scalar) are rare; pad
		// into a full word in the target's own byte order before decoding.
		buf := make([]byte, 8)
		if graph.ByteOrder.Uint16([]byte{0, 1}) == 1 {
			copy(buf[8-len(b):], b) // big-endian: value occupies the low bytes
		} else {
			copy(buf, b) // little-endian: value occupies the low bytes at offset 0
		}
		u = graph.ByteOrder.Uint64(buf)
	}
	if !signed {
		return int64(u)
	}
	bits := uint(len(b) * 8)
	if bits == 0 || bits >= 64 {
		return int64(u)
	}
	signBit := uint64(1) << (bits - 1)
	if u&signBit != 0 {
		u |= ^uint64(0) << bits
	}
	return int64(u)
}

// encodeInt encodes val as size bytes in the graph's target byte order,
// two's-complement for negative values.
func encodeInt(graph *dwarfgraph.Graph, val int64, size int64) []byte {
	b := make([]byte, size)
	u := uint64(val)
	switch size {
	case 1:
		b[0] = byte(u)
	case 2:
		graph.ByteOrder.PutUint16(b, uint16(u))
	case 4:
		graph.ByteOrder.PutUint32(b, uint32(u))
	case 8:
		graph.ByteOrder.PutUint64(b, u)
	default:
		full := make([]byte, 8)
		graph.ByteOrder.PutUint64(full, u)
		if graph.ByteOrder.Uint16([]byte{0, 1}) == 1 {
			copy(b, full[8-size:]) // big-endian: low bytes sit at the end
		} else {
			copy(b, full[:size]) // little-endian: low bytes sit at offset 0
		}
	}
	return b
}
