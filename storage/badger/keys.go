package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/mnemo/core"
)

// Key prefixes for different data types
const (
	memoryPrefix       = "mem:"
	memoryVectorPrefix = "memvec:"
	memoryDatePrefix   = "memd:"
	memorySourcePrefix = "mems:"
	memoryIDSeq        = "memseq"
	turnPrefix         = "turn:"
	turnDatePrefix     = "turnd:"
	turnIDSeq          = "turnseq"
	embedderMetaKey    = "meta:embedder"
)

// appendUint64 writes v in BigEndian order so lexicographic sort matches numeric order.
func appendUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func makeIDKey(prefix string, id core.ID) []byte {
	return appendUint64([]byte(prefix), uint64(id))
}

// makeMemoryKey generates a key for a memory by ID.
func makeMemoryKey(id core.ID) []byte {
	return makeIDKey(memoryPrefix, id)
}

// makeMemoryVectorKey generates the vector index key for a memory.
func makeMemoryVectorKey(id core.ID) []byte {
	return makeIDKey(memoryVectorPrefix, id)
}

// makeDateKey generates a composite key for a date index.
// Format: prefix:timestamp:id
func makeDateKey(prefix string, timestamp time.Time, id core.ID) []byte {
	buf := make([]byte, 0, len(prefix)+16)
	buf = append(buf, prefix...)
	buf = appendUint64(buf, uint64(timestamp.UnixMicro()))
	return appendUint64(buf, uint64(id))
}

// makeSourcePrefix generates the key prefix shared by one source.
// Format: prefix:digest
func makeSourcePrefix(source string) []byte {
	buf := make([]byte, 0, len(memorySourcePrefix)+8)
	buf = append(buf, memorySourcePrefix...)
	return appendUint64(buf, core.SourceDigest(source))
}

// makeSourceKey generates a composite key for the source index.
// Format: prefix:digest:timestamp:id
func makeSourceKey(source string, timestamp time.Time, id core.ID) []byte {
	buf := makeSourcePrefix(source)
	buf = appendUint64(buf, uint64(timestamp.UnixMicro()))
	return appendUint64(buf, uint64(id))
}

// makeTurnKey generates a key for a conversation turn by ID.
func makeTurnKey(id core.ID) []byte {
	return makeIDKey(turnPrefix, id)
}

// idFromKey reads the trailing id of any key built here.
func idFromKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// timestampFromDateKey reads the timestamp of a date index key.
func timestampFromDateKey(prefix string, key []byte) time.Time {
	return time.UnixMicro(int64(binary.BigEndian.Uint64(key[len(prefix):]))).UTC()
}

// prefixEnd returns a key sorting after every index key with prefix,
// used to seek reverse iterators.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := 0; i < 24; i++ {
		end = append(end, 0xFF)
	}
	return end
}
