package phase3

// permutations returns every ordering of ids (bounded to 4 elements, so at
// most 24 permutations; no dynamic programming is used or needed).
func permutations(ids []int) [][]int {
	if len(ids) == 0 {
		return nil
	}
	var result [][]int
	work := append([]int(nil), ids...)
	permute(work, 0, &result)
	return result
}

func permute(work []int, k int, result *[][]int) {
	if k == len(work) {
		perm := append([]int(nil), work...)
		*result = append(*result, perm)
		return
	}
	for i := k; i < len(work); i++ {
		work[k], work[i] = work[i], work[k]
		permute(work, k+1, result)
		work[k], work[i] = work[i], work[k]
	}
}

// subsetsBySizeDescending returns, for each size from len(ids)-1 down to 1,
// every subset of that size in deterministic ascending-combination order.
func subsetsBySizeDescending(ids []int) [][]int {
	var all [][]int
	for size := len(ids) - 1; size >= 1; size-- {
		all = append(all, combinations(ids, size)...)
	}
	return all
}

func combinations(ids []int, size int) [][]int {
	var result [][]int
	var pick func(start int, current []int)
	pick = func(start int, current []int) {
		if len(current) == size {
			result = append(result, current)
			return
		}
		for i := start; i < len(ids); i++ {
			next := make([]int, len(current)+1)
			copy(next, current)
			next[len(current)] = ids[i]
			pick(i+1, next)
		}
	}
	pick(0, nil)
	return result
}
