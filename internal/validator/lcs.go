package validator

// longestCommonSubsequence returns the length of the LCS between a and b
// and the matched indices into a (spec §4.4, "Text coverage" step 3).
// O(len(a)*len(b)) dynamic programming; source documents are bounded by
// MaxHTMLBytes so the segment counts stay small enough for this to be
// fine in practice.
func longestCommonSubsequence(a, b []string) (int, []int) {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return 0, nil
	}

	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var matched []int
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			matched = append(matched, i)
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return dp[0][0], matched
}

// setDiff returns segments present in a but not b ("missing") and
// segments present in b but not a ("extra"), preserving a's/b's order
// (spec §4.4 step 4).
func setDiff(a, b []string) (missing, extra []string) {
	bSet := make(map[string]int, len(b))
	for _, s := range b {
		bSet[s]++
	}
	aSet := make(map[string]int, len(a))
	for _, s := range a {
		aSet[s]++
	}

	for _, s := range a {
		if bSet[s] > 0 {
			bSet[s]--
			continue
		}
		missing = append(missing, s)
	}
	for _, s := range b {
		if aSet[s] > 0 {
			aSet[s]--
			continue
		}
		extra = append(extra, s)
	}
	return missing, extra
}

// countInversions reports the number of common-segment pairs that
// appear in differing relative order between a and b (spec §4.4, "Order
// analysis"): for each pair of segments present in both, count it as an
// inversion if their relative order differs.
func countInversions(a, b []string) int {
	posInB := make(map[string][]int, len(b))
	for idx, s := range b {
		posInB[s] = append(posInB[s], idx)
	}

	var bPositions []int
	cursor := make(map[string]int)
	for _, s := range a {
		occurrences := posInB[s]
		k := cursor[s]
		if k >= len(occurrences) {
			continue
		}
		bPositions = append(bPositions, occurrences[k])
		cursor[s] = k + 1
	}

	inversions := 0
	for i := 0; i < len(bPositions); i++ {
		for j := i + 1; j < len(bPositions); j++ {
			if bPositions[j] < bPositions[i] {
				inversions++
			}
		}
	}
	return inversions
}
