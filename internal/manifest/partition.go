package manifest

// DefaultBatchSize bounds how many entries are processed between progress checkpoints.
const DefaultBatchSize = 5000

// Batch is an ordered slice of a group's filtered entries.
type Batch []Entry

// Partition splits entries into consecutive batches of at most size entries.
// Order is preserved and every entry lands in exactly one batch. size <= 0
// means DefaultBatchSize. An empty input yields no batches.
func Partition(entries []Entry, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(entries) == 0 {
		return nil
	}
	out := make([]Batch, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, Batch(entries[start:end:end]))
	}
	return out
}
