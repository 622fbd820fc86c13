package data

import (
	"math"
	"strconv"
	"strings"
)

// DropDuplicates removes records whose features and label repeat an earlier record.
// The first occurrence is kept and order is preserved.
func DropDuplicates(d *Dataset) (*Dataset, int) {
	seen := make(map[string]struct{}, d.Len())
	keep := make([]int, 0, d.Len())
	var b strings.Builder
	for i, row := range d.X {
		b.Reset()
		b.WriteString(strconv.Itoa(d.Y[i]))
		for _, v := range row {
			b.WriteByte(',')
			b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
		}
		key := b.String()
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keep = append(keep, i)
		}
	}
	return d.Subset(keep), d.Len() - len(keep)
}
