package keys

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
	"github.com/tessera-db/tessera/pkg/types"
)

// PartitionKey is one resolved partition key: the key column values in
// schema order plus the murmur3 token used for replica placement.
type PartitionKey struct {
	Values []types.Value
	Token  uint64
}

// NewPartitionKey builds a partition key and computes its token.
func NewPartitionKey(values []types.Value) PartitionKey {
	return PartitionKey{Values: values, Token: Token(values)}
}

// ID returns the canonical byte encoding of the key as a string, suitable
// for map coalescing of updates targeting the same partition.
func (k PartitionKey) ID() string {
	return string(encodeTuple(k.Values))
}

// Token computes the 64-bit murmur3 token for a key tuple. The token is
// deterministic over the canonical key encoding.
func Token(values []types.Value) uint64 {
	return murmur3.Sum64(encodeTuple(values))
}

// encodeTuple produces a canonical, unambiguous byte encoding of a value
// tuple: per component a type tag, a length prefix, and the payload.
func encodeTuple(values []types.Value) []byte {
	var buf []byte
	for _, v := range values {
		buf = append(buf, encodeValue(v)...)
	}
	return buf
}

func encodeValue(v types.Value) []byte {
	payload := valuePayload(v)

	out := make([]byte, 0, len(v.Type)+len(payload)+6)
	out = append(out, byte(len(v.Type)))
	out = append(out, v.Type...)
	if v.IsNull {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out
}

func valuePayload(v types.Value) []byte {
	if v.IsNull {
		return nil
	}
	switch v.Type {
	case types.TypeText:
		return []byte(v.Text)
	case types.TypeBlob:
		return v.Blob
	case types.TypeBoolean:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	case types.TypeList, types.TypeSet:
		var buf []byte
		for _, elem := range v.List {
			buf = append(buf, encodeValue(elem)...)
		}
		return buf
	case types.TypeMap:
		var buf []byte
		for _, entry := range v.Map {
			buf = append(buf, encodeValue(entry.Key)...)
			buf = append(buf, encodeValue(entry.Value)...)
		}
		return buf
	default:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.Int))
		return b[:]
	}
}
