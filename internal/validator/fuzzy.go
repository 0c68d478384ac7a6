package validator

import "strings"

// levenshteinRatio returns 1 - (edit distance / max length), so 1.0
// means identical (spec §4.4 step 4, "Levenshtein ratio").
func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	dist := prev[lb]
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1 - float64(dist)/float64(maxLen)
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// jaccardTokenOverlap returns |intersection|/|union| over each string's
// whitespace-separated token set (spec §4.4 step 4, "Jaccard token
// overlap").
func jaccardTokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA)
	for tok := range setB {
		if !setA[tok] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		out[tok] = true
	}
	return out
}

func lengthRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	if la < lb {
		la, lb = lb, la
	}
	return float64(lb) / float64(la)
}

// fuzzyMatch reports whether a and b should be treated as the same
// content under spec §4.4 step 4's thresholds: the greater of a
// Levenshtein ratio or token-overlap ratio clearing its threshold,
// guarded by a length-ratio band.
func fuzzyMatch(a, b string, opts Options, lengthGuard [2]float64) bool {
	ratio := lengthRatio(a, b)
	if ratio < lengthGuard[0] || ratio > lengthGuard[1] {
		return false
	}
	lev := levenshteinRatio(a, b)
	jac := jaccardTokenOverlap(a, b)
	return lev >= opts.LevRatio || jac >= opts.TokenOverlap
}

// reconcile attempts to pair up missing/extra segments via exact
// consecutive-group matching, then fuzzy group matching, then single
// fuzzy matching (spec §4.4 step 4). It returns the segments that remain
// unmatched ("missing spans") and the list of matches that only cleared
// the fuzzy threshold (used to compute AdjustedCoverage).
func reconcile(missing, extra []string, opts Options) (remainingMissing []string, fuzzyMatches []string) {
	missing, extra, exactMatched := reconcileExactGroups(missing, extra, opts.GroupMax)
	missing, extra, groupMatched := reconcileFuzzyGroups(missing, extra, opts)
	missing, extra, singleMatched := reconcileFuzzySingles(missing, extra, opts)

	fuzzyMatches = append(fuzzyMatches, groupMatched...)
	fuzzyMatches = append(fuzzyMatches, singleMatched...)
	_ = exactMatched // exact matches already folded into the LCS score

	return missing, fuzzyMatches
}

// reconcileExactGroups matches 2..4 concatenated missing segments
// against a single extra segment, or vice versa (spec §4.4 step 4,
// "exact consecutive-group matching").
func reconcileExactGroups(missing, extra []string, groupMax int) (remMissing, remExtra []string, matched int) {
	remMissing = append([]string(nil), missing...)
	remExtra = append([]string(nil), extra...)

	matched += collapseGroupsAgainstSingles(&remMissing, &remExtra)
	matched += collapseGroupsAgainstSingles(&remExtra, &remMissing)
	return remMissing, remExtra, matched
}

// collapseGroupsAgainstSingles concatenates 2..4 consecutive entries of
// *groups and removes both the group and its matching single entry of
// *singles whenever the concatenation is exactly equal.
func collapseGroupsAgainstSingles(groups, singles *[]string) int {
	matched := 0
	g := *groups
	for gi := 0; gi < len(g); {
		found := false
		for size := 2; size <= 4 && gi+size <= len(g); size++ {
			concat := strings.Join(g[gi:gi+size], " ")
			for si, s := range *singles {
				if concat == s {
					*singles = append((*singles)[:si], (*singles)[si+1:]...)
					g = append(g[:gi], g[gi+size:]...)
					matched++
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			gi++
		}
	}
	*groups = g
	return matched
}

func reconcileFuzzyGroups(missing, extra []string, opts Options) (remMissing, remExtra []string, matched []string) {
	remMissing = append([]string(nil), missing...)
	remExtra = append([]string(nil), extra...)

	for size := 2; size <= opts.GroupMax; size++ {
		for gi := 0; gi+size <= len(remMissing); {
			concat := strings.Join(remMissing[gi:gi+size], " ")
			matchedIdx := -1
			for ei, e := range remExtra {
				if fuzzyMatch(concat, e, opts, [2]float64{0.75, 1.25}) {
					matchedIdx = ei
					break
				}
			}
			if matchedIdx >= 0 {
				matched = append(matched, concat)
				remMissing = append(remMissing[:gi], remMissing[gi+size:]...)
				remExtra = append(remExtra[:matchedIdx], remExtra[matchedIdx+1:]...)
				continue
			}
			gi++
		}
	}
	return remMissing, remExtra, matched
}

func reconcileFuzzySingles(missing, extra []string, opts Options) (remMissing, remExtra []string, matched []string) {
	remMissing = append([]string(nil), missing...)
	remExtra = append([]string(nil), extra...)

	for i := 0; i < len(remMissing); {
		matchedIdx := -1
		for ei, e := range remExtra {
			if fuzzyMatch(remMissing[i], e, opts, [2]float64{0.6, 1.4}) {
				matchedIdx = ei
				break
			}
		}
		if matchedIdx >= 0 {
			matched = append(matched, remMissing[i])
			remMissing = append(remMissing[:i], remMissing[i+1:]...)
			remExtra = append(remExtra[:matchedIdx], remExtra[matchedIdx+1:]...)
			continue
		}
		i++
	}
	return remMissing, remExtra, matched
}
