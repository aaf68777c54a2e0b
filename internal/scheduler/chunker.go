package scheduler

import "fmt"

const (
	// DefaultChunkCap is the largest share of a task planned on a single day.
	DefaultChunkCap = 180
	// DefaultMinChunk is the smallest chunk peeled off a long task.
	DefaultMinChunk = 30
)

// ChunkOptions bounds the chunk sizes produced by Partition.
type ChunkOptions struct {
	Cap      int
	MinChunk int
}

func (o ChunkOptions) normalized() ChunkOptions {
	if o.Cap <= 0 {
		o.Cap = DefaultChunkCap
	}
	if o.MinChunk <= 0 {
		o.MinChunk = DefaultMinChunk
	}
	if o.MinChunk > o.Cap {
		o.MinChunk = o.Cap
	}
	return o
}

// Partition splits totalMinutes into an ordered sequence of daily chunks that
// sum exactly to totalMinutes. Non-positive totals yield no chunks.
func Partition(totalMinutes int, opts ChunkOptions) []int {
	if totalMinutes <= 0 {
		return nil
	}
	opts = opts.normalized()
	if totalMinutes <= opts.Cap {
		return []int{totalMinutes}
	}

	var chunks []int
	remaining := totalMinutes
	for remaining > 0 {
		var size int
		switch {
		case remaining <= opts.Cap:
			size = remaining
		case remaining <= 2*opts.Cap:
			size = remaining / 2
		default:
			pieces := (remaining + opts.Cap - 1) / opts.Cap
			size = maxInt(opts.MinChunk, minInt(opts.Cap, remaining/pieces))
		}
		chunks = append(chunks, size)
		remaining -= size
	}

	mustSum(chunks, totalMinutes)
	return chunks
}

func mustSum(chunks []int, total int) {
	sum := 0
	for _, c := range chunks {
		if c < 1 {
			panic(fmt.Sprintf("scheduler: chunk of %d minutes in partition of %d", c, total))
		}
		sum += c
	}
	if sum != total {
		panic(fmt.Sprintf("scheduler: chunks sum to %d, want %d", sum, total))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
