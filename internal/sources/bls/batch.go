package bls

// Partition splits ids into consecutive batches of at most size elements,
// preserving order. size outside 1..MaxBatchSize is treated as MaxBatchSize.
func Partition(ids []string, size int) [][]string {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	if len(ids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batch := make([]string, end-start)
		copy(batch, ids[start:end])
		batches = append(batches, batch)
	}
	return batches
}

// YearWindow is an inclusive range of years for one request.
type YearWindow struct {
	Start int
	End   int
}

// YearWindows splits [start, end] into consecutive windows of at most span
// years. span <= 0 yields the whole range as one window.
func YearWindows(start, end, span int) []YearWindow {
	if end < start {
		start, end = end, start
	}
	if span <= 0 {
		return []YearWindow{{Start: start, End: end}}
	}
	var out []YearWindow
	for y := start; y <= end; y += span {
		w := YearWindow{Start: y, End: y + span - 1}
		if w.End > end {
			w.End = end
		}
		out = append(out, w)
	}
	return out
}
