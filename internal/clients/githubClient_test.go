package clients

import (
	"testing"

	"github.com/google/go-github/v55/github"
)

func TestMapBranchProtection(t *testing.T) {
	protection := &github.Protection{
		AllowDeletions:   &github.AllowDeletions{Enabled: true},
		AllowForcePushes: &github.AllowForcePushes{Enabled: false},
		RequiredPullRequestReviews: &github.PullRequestReviewsEnforcement{
			RequiredApprovingReviewCount: 2,
		},
		RequiredStatusChecks: &github.RequiredStatusChecks{
			Contexts: []string{"ci", "lint"},
		},
	}

	mapped := mapBranchProtection(protection)

	if !mapped.AllowDeletions {
		t.Fatal("expected AllowDeletions to carry over")
	}
	if mapped.AllowForcePushes {
		t.Fatal("expected AllowForcePushes to carry over")
	}
	if mapped.RequiredApprovingReviewCount != 2 {
		t.Fatalf("RequiredApprovingReviewCount = %d, want 2", mapped.RequiredApprovingReviewCount)
	}
	if len(mapped.RequiredStatusContexts) != 2 || mapped.RequiredStatusContexts[0] != "ci" {
		t.Fatalf("unexpected contexts: %v", mapped.RequiredStatusContexts)
	}
}

func TestMapBranchProtectionEmptyPayload(t *testing.T) {
	mapped := mapBranchProtection(&github.Protection{})

	if mapped.AllowDeletions || mapped.AllowForcePushes {
		t.Fatal("absent toggles must map to false")
	}
	if mapped.RequiredApprovingReviewCount != 0 {
		t.Fatalf("RequiredApprovingReviewCount = %d, want 0", mapped.RequiredApprovingReviewCount)
	}
	if mapped.RequiredStatusContexts != nil {
		t.Fatalf("unexpected contexts: %v", mapped.RequiredStatusContexts)
	}
}
