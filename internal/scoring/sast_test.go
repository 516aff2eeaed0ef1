package scoring

import "testing"

func TestCombineSASTBothInconclusive(t *testing.T) {
	if score := CombineSASTScores(Inconclusive, Inconclusive); score != MinScore {
		t.Fatalf("expected 0, got %s", score)
	}
}

func TestCombineSASTMaxSastWins(t *testing.T) {
	for _, codeql := range []Score{MinScore, 5, MaxScore, Inconclusive} {
		if score := CombineSASTScores(MaxScore, codeql); score != MaxScore {
			t.Fatalf("sast=10, codeql=%s: expected 10, got %s", codeql, score)
		}
	}
}

func TestCombineSASTCodeQLZeroReturnsSast(t *testing.T) {
	if score := CombineSASTScores(4, MinScore); score != 4 {
		t.Fatalf("expected 4, got %s", score)
	}
}

func TestCombineSASTCodeQLMaxWeightedMix(t *testing.T) {
	// round(4*0.3 + 10*0.7) = round(8.2) = 8
	if score := CombineSASTScores(4, MaxScore); score != 8 {
		t.Fatalf("expected 8, got %s", score)
	}
}

func TestCombineSASTPartialCodeQLIsZero(t *testing.T) {
	if score := CombineSASTScores(4, 6); score != MinScore {
		t.Fatalf("expected 0, got %s", score)
	}
}

func TestCombineSASTOneInconclusive(t *testing.T) {
	if score := CombineSASTScores(4, Inconclusive); score != 4 {
		t.Fatalf("expected 4, got %s", score)
	}
	if score := CombineSASTScores(Inconclusive, 7); score != 7 {
		t.Fatalf("expected 7, got %s", score)
	}
}

func TestSASTScoreFromCheckRunsNoCommits(t *testing.T) {
	if score := SASTScoreFromCheckRuns(nil); score != Inconclusive {
		t.Fatalf("expected inconclusive, got %s", score)
	}
}

func TestSASTScoreFromCheckRunsFraction(t *testing.T) {
	analyzed := []CheckRun{{Status: "completed", Conclusion: "success", AppSlug: "codeql"}}
	plain := []CheckRun{{Status: "completed", Conclusion: "success", AppSlug: "ci"}}

	score := SASTScoreFromCheckRuns([][]CheckRun{analyzed, plain})
	if score != 5 {
		t.Fatalf("expected 5 for half the commits analyzed, got %s", score)
	}
}

func TestSASTScoreIgnoresFailedRuns(t *testing.T) {
	failed := []CheckRun{{Status: "completed", Conclusion: "failure", AppSlug: "codeql"}}

	if score := SASTScoreFromCheckRuns([][]CheckRun{failed}); score != MinScore {
		t.Fatalf("expected 0, got %s", score)
	}
}

func TestCodeQLScoreFromWorkflows(t *testing.T) {
	if score := CodeQLScoreFromWorkflows(nil); score != Inconclusive {
		t.Fatalf("expected inconclusive with no workflows, got %s", score)
	}

	contents := []string{"uses: actions/checkout@v4", "uses: github/codeql-action/analyze@v3"}
	if score := CodeQLScoreFromWorkflows(contents); score != MaxScore {
		t.Fatalf("expected 10, got %s", score)
	}

	if score := CodeQLScoreFromWorkflows([]string{"uses: actions/setup-go@v5"}); score != MinScore {
		t.Fatalf("expected 0, got %s", score)
	}
}
