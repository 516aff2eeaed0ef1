package scoring

// BranchProtection is the protection settings of a single branch. A nil
// entry in the scored slice stands for an unprotected branch.
type BranchProtection struct {
	AllowDeletions               bool
	AllowForcePushes             bool
	RequiredApprovingReviewCount int
	RequiredStatusContexts       []string
}

// Tier weights, summing to the maximum score.
const (
	basicTierWeight          = 3
	reviewTierWeight         = 3
	contextTierWeight        = 2
	thoroughReviewTierWeight = 2
)

// Per branch bucket maxima.
const (
	maxBasicPoints          = 2
	maxReviewPoints         = 1
	maxContextPoints        = 1
	maxThoroughReviewPoints = 1
)

// BranchProtectionScore scores protection across the relevant branches
// (development, release targets and default, deduplicated by the caller).
// Unprotected branches are skipped; zero protected branches scores 0.
func BranchProtectionScore(branches []*BranchProtection) Score {
	var protected int
	var basic, review, contexts, thorough int

	for _, branch := range branches {
		if branch == nil {
			continue
		}
		protected++

		if !branch.AllowDeletions {
			basic++
		}
		if !branch.AllowForcePushes {
			basic++
		}
		if branch.RequiredApprovingReviewCount > 0 {
			review++
		}
		if len(branch.RequiredStatusContexts) > 0 {
			contexts++
		}
		if branch.RequiredApprovingReviewCount >= 2 {
			thorough++
		}
	}

	if protected == 0 {
		return MinScore
	}

	sum := tierPoints(basic, protected*maxBasicPoints, basicTierWeight) +
		tierPoints(review, protected*maxReviewPoints, reviewTierWeight) +
		tierPoints(contexts, protected*maxContextPoints, contextTierWeight) +
		tierPoints(thorough, protected*maxThoroughReviewPoints, thoroughReviewTierWeight)

	if sum > int(MaxScore) {
		return MaxScore
	}

	return Score(sum)
}

// tierPoints normalizes the accumulated bucket points into the tier weight,
// truncating like the tiered model requires.
func tierPoints(points, maxPoints, weight int) int {
	return int(float64(points) / float64(maxPoints) * float64(weight))
}
