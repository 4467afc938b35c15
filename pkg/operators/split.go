package operators

import "github.com/cuemby/queryrt/pkg/storage"

// SplitRange divides r into len(splitKeys)+1 sub-ranges at the given
// split keys, for relation::scan's configurable parallelism (§4.6.1). The
// first sub-range keeps r's own lower endpoint; each later sub-range's
// lower endpoint is inclusive at its split key; every sub-range but the
// last has an exclusive upper endpoint at the next split key, so adjacent
// sub-ranges never overlap. splitKeys must be in ascending order, each
// strictly within r; with no split keys r is returned as the only range.
func SplitRange(r storage.Range, splitKeys [][]byte) []storage.Range {
	if len(splitKeys) == 0 {
		return []storage.Range{r}
	}
	out := make([]storage.Range, 0, len(splitKeys)+1)
	lower := r.Lower
	for _, k := range splitKeys {
		out = append(out, storage.Range{
			Lower: lower,
			Upper: storage.Endpoint{Key: k, Inclusivity: storage.Exclusive},
		})
		lower = storage.Endpoint{Key: k, Inclusivity: storage.Inclusive}
	}
	out = append(out, storage.Range{Lower: lower, Upper: r.Upper})
	return out
}
