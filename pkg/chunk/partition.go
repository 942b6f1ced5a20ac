package chunk

import "fmt"

// Bounds returns the chunk boundaries for total ids split into windows of size.
// Returns a slice of [start, end) index pairs in id order.
func Bounds(total, size int) [][2]int {
	if size < MinChunkSize {
		panic(fmt.Sprintf("chunk: invalid chunk size %d", size))
	}

	count := chunkCount(total, size)
	bounds := make([][2]int, count)

	for i := range count {
		start := i * size
		end := min(start+size, total)
		bounds[i] = [2]int{start, end}
	}

	return bounds
}

// Partition splits ids into ordered, non-overlapping chunks of at most size ids.
// Every chunk but the last holds exactly size ids. Chunks are views of ids with their
// capacity clipped, so appending to one never writes into the next.
func Partition[K any](ids []K, size int) [][]K {
	bounds := Bounds(len(ids), size)
	chunks := make([][]K, len(bounds))

	for i, b := range bounds {
		chunks[i] = ids[b[0]:b[1]:b[1]]
	}

	return chunks
}

// chunkCount calculates the number of chunks needed for the given id count.
func chunkCount(total, size int) int {
	chunks := total / size
	if total%size > 0 {
		chunks++
	}
	return chunks
}
