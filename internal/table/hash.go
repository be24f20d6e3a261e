package table

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
)

// HashFields returns a stable 64-bit fingerprint of the given values.
//
// Values are written in order with a one-byte type tag so that ("ab", "c")
// and ("a", "bc") hash differently. Common scalar types are encoded
// directly; anything else falls back to its fmt representation.
func HashFields(values ...any) uint64 {
	d := xxhash.New()
	var buf [9]byte

	for _, v := range values {
		switch x := v.(type) {
		case nil:
			buf[0] = 0
			d.Write(buf[:1])
		case string:
			buf[0] = 1
			binary.LittleEndian.PutUint64(buf[1:], uint64(len(x)))
			d.Write(buf[:])
			d.WriteString(x)
		case int:
			writeTagged(d, &buf, 2, uint64(x))
		case int32:
			writeTagged(d, &buf, 2, uint64(x))
		case int64:
			writeTagged(d, &buf, 2, uint64(x))
		case uint64:
			writeTagged(d, &buf, 3, x)
		case bool:
			var b uint64
			if x {
				b = 1
			}
			writeTagged(d, &buf, 4, b)
		case float64:
			writeTagged(d, &buf, 5, math.Float64bits(x))
		case time.Time:
			writeTagged(d, &buf, 6, uint64(x.UnixNano()))
		case []byte:
			buf[0] = 7
			binary.LittleEndian.PutUint64(buf[1:], uint64(len(x)))
			d.Write(buf[:])
			d.Write(x)
		default:
			s := fmt.Sprint(x)
			buf[0] = 8
			binary.LittleEndian.PutUint64(buf[1:], uint64(len(s)))
			d.Write(buf[:])
			d.WriteString(s)
		}
	}

	return d.Sum64()
}

func writeTagged(d *xxhash.Digest, buf *[9]byte, tag byte, v uint64) {
	buf[0] = tag
	binary.LittleEndian.PutUint64(buf[1:], v)
	d.Write(buf[:])
}
