package evidence

import "testing"

const base = "https://github.com/acme/widget"

func TestClassifyCommit(t *testing.T) {
	tag := Classify(base+"/commit/abc123def", base)
	if tag != TagCommit {
		t.Fatalf("expected commit, got %s", tag)
	}
}

func TestClassifyIssue(t *testing.T) {
	tag := Classify(base+"/issues/42", base)
	if tag != TagIssue {
		t.Fatalf("expected issue, got %s", tag)
	}
}

func TestClassifyRelease(t *testing.T) {
	tag := Classify(base+"/releases/tag/v1.2.3", base)
	if tag != TagRelease {
		t.Fatalf("expected release, got %s", tag)
	}
}

func TestClassifyAdvisory(t *testing.T) {
	tag := Classify(base+"/security/advisories/GHSA-xxxx-yyyy", base)
	if tag != TagAdvisory {
		t.Fatalf("expected advisory, got %s", tag)
	}
}

func TestClassifyPullRequest(t *testing.T) {
	tag := Classify(base+"/pull/101", base)
	if tag != TagPullRequest {
		t.Fatalf("expected pull_request, got %s", tag)
	}
}

func TestClassifyBountyIgnoresOwner(t *testing.T) {
	tag := Classify("https://huntr.dev/bounties/1234-abcd/", base)
	if tag != TagBounty {
		t.Fatalf("expected bounty, got %s", tag)
	}
}

func TestClassifyOtherRepositoryCommitIsNone(t *testing.T) {
	tag := Classify("https://github.com/other/project/commit/abc123", base)
	if tag != TagNone {
		t.Fatalf("expected none for foreign repository, got %s", tag)
	}
}

func TestClassifyUnrelatedURLIsNone(t *testing.T) {
	tag := Classify("https://example.com/blog/vuln-writeup", base)
	if tag != TagNone {
		t.Fatalf("expected none, got %s", tag)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	urls := []string{
		base + "/commit/abc",
		base + "/issues/7",
		"https://huntr.dev/bounties/x",
		"https://example.com",
	}

	for _, u := range urls {
		first := Classify(u, base)
		second := Classify(u, base)
		if first != second {
			t.Fatalf("classification of %s not idempotent: %s vs %s", u, first, second)
		}
	}
}

func TestClassifyAllPreservesOrder(t *testing.T) {
	urls := []string{base + "/pull/3", base + "/commit/aa"}
	refs := ClassifyAll(urls, base)

	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].Tag != TagPullRequest || refs[1].Tag != TagCommit {
		t.Fatalf("unexpected tags: %s, %s", refs[0].Tag, refs[1].Tag)
	}
}
