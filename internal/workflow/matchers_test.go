package workflow

import "testing"

func TestMatchPackagingNpm(t *testing.T) {
	definition := parseOk(t, `
on: release
jobs:
  publish:
    steps:
      - uses: actions/setup-node@v4
        with:
          registry-url: https://registry.npmjs.org
      - run: npm publish
`)
	name, ok := MatchPackaging(definition)
	if !ok {
		t.Fatal("expected npm packaging workflow to match")
	}
	if name != "npm" {
		t.Fatalf("expected npm template, got %s", name)
	}
}

func TestMatchPackagingMavenAcrossJobs(t *testing.T) {
	// expected steps may be satisfied by steps in different jobs
	definition := parseOk(t, `
on: release
jobs:
  setup:
    steps:
      - uses: actions/setup-java@v4
  deploy:
    steps:
      - run: mvn --batch-mode deploy
`)
	if !IsPackaging(definition) {
		t.Fatal("expected maven packaging workflow to match")
	}
}

func TestMatchPackagingRequiresAllExpectedSteps(t *testing.T) {
	definition := parseOk(t, `
on: push
jobs:
  build:
    steps:
      - uses: actions/setup-java@v4
      - run: mvn verify
`)
	if IsPackaging(definition) {
		t.Fatal("setup-java without a deploy step is not packaging")
	}
}

func TestMatchPackagingRegistryURLMustMatch(t *testing.T) {
	definition := parseOk(t, `
on: push
jobs:
  build:
    steps:
      - uses: actions/setup-node@v4
        with:
          registry-url: https://npm.internal.example.com
`)
	if IsPackaging(definition) {
		t.Fatal("a private registry is not the npm publishing template")
	}
}

func TestMatchPackagingGoreleaser(t *testing.T) {
	definition := parseOk(t, `
on: push
jobs:
  release:
    steps:
      - uses: actions/setup-go@v5
      - uses: goreleaser/goreleaser-action@v6
`)
	name, _ := MatchPackaging(definition)
	if name != "goreleaser" {
		t.Fatalf("expected goreleaser, got %s", name)
	}
}

func TestSatisfiesNilDefinition(t *testing.T) {
	if Satisfies(nil, PackagingTemplates[0]) {
		t.Fatal("malformed workflow satisfies nothing")
	}
}

func TestStepPatternMappingDispatch(t *testing.T) {
	pattern := Mapping("with", "registry-url", "https://registry.npmjs.org")
	step := Step{Uses: "actions/setup-node", With: map[string]string{"registry-url": "https://registry.npmjs.org"}}

	if !pattern.Matches(step) {
		t.Fatal("expected mapping pattern to match distinguished sub key")
	}
	if pattern.Matches(Step{Uses: "actions/setup-node"}) {
		t.Fatal("mapping pattern must not match a step without the sub key")
	}
}

func TestStepPatternRunRegex(t *testing.T) {
	pattern := String("run", "cargo.*publish")

	if !pattern.Matches(Step{Run: "cargo build && cargo publish"}) {
		t.Fatal("expected run regex to match")
	}
	if pattern.Matches(Step{Run: "echo cargo"}) {
		t.Fatal("run regex should not match")
	}
}
