package scheduler

import "timeblock/internal/storage"

const defaultMinChunk = 30 // minutes

// SplitChunks divides total minutes into chunk sizes. The final chunk absorbs
// whatever remains once it fits under maxChunk; earlier chunks take half the
// remainder, clamped to [minChunk, maxChunk].
func SplitChunks(total, maxChunk, minChunk int) []int {
	if total <= 0 {
		return nil
	}
	if maxChunk <= 0 {
		maxChunk = total
	}
	if minChunk <= 0 {
		minChunk = defaultMinChunk
	}
	if minChunk > maxChunk {
		minChunk = maxChunk
	}

	var chunks []int
	remaining := total
	for remaining > 0 {
		if remaining <= maxChunk {
			chunks = append(chunks, remaining)
			break
		}
		size := remaining / 2
		if size < minChunk {
			size = minChunk
		}
		if size > maxChunk {
			size = maxChunk
		}
		chunks = append(chunks, size)
		remaining -= size
	}
	return chunks
}

// chunksFor expands a task into its chunk sizes. Non-chunked tasks are a
// single block of the full duration.
func chunksFor(t storage.Task) []int {
	if !t.Chunking {
		return []int{t.TotalDuration}
	}
	return SplitChunks(t.TotalDuration, t.ChunkingMaxDuration, t.ChunkingMinDuration)
}
