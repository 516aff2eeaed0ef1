package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-github/v55/github"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	cache "github.com/oss-posture/posture/internal/caching"
	"github.com/oss-posture/posture/internal/clients/models"
	"github.com/oss-posture/posture/internal/configuration"
	"github.com/oss-posture/posture/internal/scoring"
	"github.com/oss-posture/posture/internal/vulnerability"
)

// recentCommitWindow bounds how many head commits feed the check run
// signal.
const recentCommitWindow = 30

type GithubClientService interface {
	Repository(ctx context.Context, rawUrl string) (models.RepositoryIdentity, error)
	Branches(ctx context.Context, repo models.RepositoryIdentity) ([]string, error)
	ReleaseTargets(ctx context.Context, repo models.RepositoryIdentity) ([]string, error)
	BranchProtection(ctx context.Context, repo models.RepositoryIdentity, branch string) (*scoring.BranchProtection, error)
	ListFiles(ctx context.Context, repo models.RepositoryIdentity) ([]string, error)
	FileContent(ctx context.Context, repo models.RepositoryIdentity, path string) ([]byte, error)
	CheckRunsForRecentCommits(ctx context.Context, repo models.RepositoryIdentity) ([][]scoring.CheckRun, error)
	WorkflowSuccessfulRuns(ctx context.Context, repo models.RepositoryIdentity, fileName string) (int, error)

	vulnerability.Platform
}

type GithubClient struct {
	client *github.Client
	cb     *gobreaker.CircuitBreaker
	cache  *cache.Cache
}

func NewGithubClient(config *configuration.Config, cache *cache.Cache) (*GithubClient, error) {
	httpClient := &http.Client{
		Timeout: configuration.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	if token := config.GithubToken(); token != "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(
			context.WithValue(context.Background(), oauth2.HTTPClient, httpClient),
			source,
		)
	}

	client := github.NewClient(httpClient)
	if config.GithubClientSettings.BaseUrl != "https://api.github.com" {
		enterprise, err := client.WithEnterpriseURLs(
			config.GithubClientSettings.BaseUrl,
			config.GithubClientSettings.BaseUrl,
		)
		if err != nil {
			return nil, fmt.Errorf("error configuring github base url: %w", err)
		}
		client = enterprise
	}

	cbSettings := gobreaker.Settings{
		Name:        "github-client",
		MaxRequests: 5,
		Interval:    3 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &GithubClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		cache:  cache,
	}, nil
}

// Repository resolves a repository url into its identity, including the
// default branch the rest of the analysis pivots on.
func (c *GithubClient) Repository(ctx context.Context, rawUrl string) (models.RepositoryIdentity, error) {
	parsed, err := url.Parse(strings.TrimSuffix(rawUrl, "/"))
	if err != nil {
		return models.RepositoryIdentity{}, fmt.Errorf("error parsing repository url: %w", err)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return models.RepositoryIdentity{}, fmt.Errorf("url %q is not an owner/name repository url", rawUrl)
	}

	owner, name := segments[0], strings.TrimSuffix(segments[1], ".git")

	result, err := c.cb.Execute(func() (interface{}, error) {
		repository, _, err := c.client.Repositories.Get(ctx, owner, name)
		if err != nil {
			return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, name, err)
		}
		return repository, nil
	})
	if err != nil {
		return models.RepositoryIdentity{}, err
	}

	repository := result.(*github.Repository)

	return models.RepositoryIdentity{
		Host:          parsed.Host,
		Owner:         owner,
		Name:          name,
		DefaultBranch: repository.GetDefaultBranch(),
		Archived:      repository.GetArchived(),
	}, nil
}

// Branches lists every branch name of the repository.
func (c *GithubClient) Branches(ctx context.Context, repo models.RepositoryIdentity) ([]string, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		var names []string
		options := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}

		for {
			branches, response, err := c.client.Repositories.ListBranches(ctx, repo.Owner, repo.Name, options)
			if err != nil {
				return nil, fmt.Errorf("listing branches for %s: %w", repo.FullName(), err)
			}
			for _, branch := range branches {
				names = append(names, branch.GetName())
			}
			if response.NextPage == 0 {
				break
			}
			options.Page = response.NextPage
		}

		return names, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]string), nil
}

// ReleaseTargets collects the branches recent releases were cut from.
func (c *GithubClient) ReleaseTargets(ctx context.Context, repo models.RepositoryIdentity) ([]string, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		releases, _, err := c.client.Repositories.ListReleases(ctx, repo.Owner, repo.Name,
			&github.ListOptions{PerPage: 30})
		if err != nil {
			return nil, fmt.Errorf("listing releases for %s: %w", repo.FullName(), err)
		}

		seen := make(map[string]struct{}, len(releases))
		var targets []string
		for _, release := range releases {
			target := release.GetTargetCommitish()
			if target == "" {
				continue
			}
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			targets = append(targets, target)
		}

		return targets, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]string), nil
}

// BranchProtection fetches the protection settings of one branch. An
// unprotected branch returns nil without error.
func (c *GithubClient) BranchProtection(ctx context.Context, repo models.RepositoryIdentity, branch string) (*scoring.BranchProtection, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		protection, response, err := c.client.Repositories.GetBranchProtection(ctx, repo.Owner, repo.Name, branch)
		if err != nil {
			if response != nil && (response.StatusCode == http.StatusNotFound || response.StatusCode == http.StatusForbidden) {
				return (*scoring.BranchProtection)(nil), nil
			}
			return nil, fmt.Errorf("fetching protection for %s@%s: %w", repo.FullName(), branch, err)
		}

		return mapBranchProtection(protection), nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*scoring.BranchProtection), nil
}

// mapBranchProtection flattens the api protection payload into the fields
// the scorer consumes.
func mapBranchProtection(protection *github.Protection) *scoring.BranchProtection {
	mapped := &scoring.BranchProtection{}
	if deletions := protection.GetAllowDeletions(); deletions != nil {
		mapped.AllowDeletions = deletions.Enabled
	}
	if pushes := protection.GetAllowForcePushes(); pushes != nil {
		mapped.AllowForcePushes = pushes.Enabled
	}
	if reviews := protection.GetRequiredPullRequestReviews(); reviews != nil {
		mapped.RequiredApprovingReviewCount = reviews.RequiredApprovingReviewCount
	}
	if checks := protection.GetRequiredStatusChecks(); checks != nil {
		mapped.RequiredStatusContexts = checks.Contexts
	}

	return mapped
}

// ListFiles walks the full git tree of the default branch and returns every
// blob path.
func (c *GithubClient) ListFiles(ctx context.Context, repo models.RepositoryIdentity) ([]string, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		tree, _, err := c.client.Git.GetTree(ctx, repo.Owner, repo.Name, repo.DefaultBranch, true)
		if err != nil {
			return nil, fmt.Errorf("fetching file tree for %s: %w", repo.FullName(), err)
		}

		paths := make([]string, 0, len(tree.Entries))
		for _, entry := range tree.Entries {
			if entry.GetType() != "blob" {
				continue
			}
			paths = append(paths, entry.GetPath())
		}

		return paths, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]string), nil
}

// FileContent downloads a single file from the default branch.
func (c *GithubClient) FileContent(ctx context.Context, repo models.RepositoryIdentity, path string) ([]byte, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		content, _, _, err := c.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
			&github.RepositoryContentGetOptions{Ref: repo.DefaultBranch})
		if err != nil {
			return nil, fmt.Errorf("fetching %s from %s: %w", path, repo.FullName(), err)
		}
		if content == nil {
			return nil, fmt.Errorf("%s in %s is not a file", path, repo.FullName())
		}

		decoded, err := content.GetContent()
		if err != nil {
			return nil, fmt.Errorf("decoding %s from %s: %w", path, repo.FullName(), err)
		}

		return []byte(decoded), nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// CheckRunsForRecentCommits returns the check runs grouped per head commit
// across the recent commit window.
func (c *GithubClient) CheckRunsForRecentCommits(ctx context.Context, repo models.RepositoryIdentity) ([][]scoring.CheckRun, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		commits, _, err := c.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name,
			&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: recentCommitWindow}})
		if err != nil {
			return nil, fmt.Errorf("listing commits for %s: %w", repo.FullName(), err)
		}

		grouped := make([][]scoring.CheckRun, 0, len(commits))
		for _, commit := range commits {
			results, _, err := c.client.Checks.ListCheckRunsForRef(ctx, repo.Owner, repo.Name,
				commit.GetSHA(), &github.ListCheckRunsOptions{})
			if err != nil {
				return nil, fmt.Errorf("listing check runs for %s@%s: %w", repo.FullName(), commit.GetSHA(), err)
			}

			runs := make([]scoring.CheckRun, 0, len(results.CheckRuns))
			for _, run := range results.CheckRuns {
				runs = append(runs, scoring.CheckRun{
					Status:     run.GetStatus(),
					Conclusion: run.GetConclusion(),
					AppSlug:    run.GetApp().GetSlug(),
				})
			}
			grouped = append(grouped, runs)
		}

		return grouped, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([][]scoring.CheckRun), nil
}

// WorkflowSuccessfulRuns counts the successful runs of one workflow file.
func (c *GithubClient) WorkflowSuccessfulRuns(ctx context.Context, repo models.RepositoryIdentity, fileName string) (int, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		runs, _, err := c.client.Actions.ListWorkflowRunsByFileName(ctx, repo.Owner, repo.Name, fileName,
			&github.ListWorkflowRunsOptions{
				Status:      "success",
				ListOptions: github.ListOptions{PerPage: 1},
			})
		if err != nil {
			return nil, fmt.Errorf("listing workflow runs for %s/%s: %w", repo.FullName(), fileName, err)
		}

		return runs.GetTotalCount(), nil
	})
	if err != nil {
		return 0, err
	}

	return result.(int), nil
}

// BranchesContaining resolves which branches contain a commit. The api has
// no such endpoint, so the repository is cloned once per session and
// ancestry is walked locally.
func (c *GithubClient) BranchesContaining(ctx context.Context, repo models.RepositoryIdentity, sha string) ([]string, error) {
	clone, err := c.cloneOnce(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("%w: cloning %s: %v", vulnerability.ErrLookupFailure, repo.FullName(), err)
	}

	target, err := clone.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		// the commit may have been force pushed away, no branch has it
		return nil, nil
	}

	references, err := clone.References()
	if err != nil {
		return nil, fmt.Errorf("%w: reading refs of %s: %v", vulnerability.ErrLookupFailure, repo.FullName(), err)
	}
	defer references.Close()

	var branches []string
	for {
		reference, err := references.Next()
		if err != nil {
			break
		}

		name := reference.Name()
		if !name.IsBranch() && !name.IsRemote() {
			continue
		}

		tip, err := clone.CommitObject(reference.Hash())
		if err != nil {
			continue
		}

		contained := tip.Hash == target.Hash
		if !contained {
			contained, err = target.IsAncestor(tip)
			if err != nil {
				continue
			}
		}

		if contained {
			branches = append(branches, branchShortName(name.Short()))
		}
	}

	return dedupeStrings(branches), nil
}

// cloneOnce clones the repository bare into a throwaway directory, memoized
// for the session.
func (c *GithubClient) cloneOnce(ctx context.Context, repo models.RepositoryIdentity) (*git.Repository, error) {
	cloned, err := c.cache.GetOrCreate("clone:"+repo.FullName(), func() (interface{}, error) {
		dir, err := os.MkdirTemp("", "posture-clone-*")
		if err != nil {
			return nil, fmt.Errorf("creating clone directory: %w", err)
		}

		clone, err := git.PlainCloneContext(ctx, dir, true, &git.CloneOptions{
			URL:        repo.BaseURL() + ".git",
			NoCheckout: true,
		})
		if err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("cloning %s: %w", repo.FullName(), err)
		}

		return clone, nil
	})
	if err != nil {
		return nil, err
	}

	return cloned.(*git.Repository), nil
}

// Issue fetches an issue together with its comment authors.
func (c *GithubClient) Issue(ctx context.Context, repo models.RepositoryIdentity, number int) (vulnerability.Issue, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		issue, _, err := c.client.Issues.Get(ctx, repo.Owner, repo.Name, number)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching issue %d of %s: %v", vulnerability.ErrLookupFailure, number, repo.FullName(), err)
		}

		comments, _, err := c.client.Issues.ListComments(ctx, repo.Owner, repo.Name, number,
			&github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}})
		if err != nil {
			return nil, fmt.Errorf("%w: listing comments on issue %d of %s: %v", vulnerability.ErrLookupFailure, number, repo.FullName(), err)
		}

		mapped := vulnerability.Issue{
			State:     issue.GetState(),
			CreatedAt: issue.GetCreatedAt().Time,
			ClosedAt:  issue.GetClosedAt().Time,
		}
		for _, comment := range comments {
			mapped.CommentAuthors = append(mapped.CommentAuthors, comment.GetUser().GetLogin())
		}

		return mapped, nil
	})
	if err != nil {
		return vulnerability.Issue{}, err
	}

	return result.(vulnerability.Issue), nil
}

// Contributors lists contributor logins, memoized per repository.
func (c *GithubClient) Contributors(ctx context.Context, repo models.RepositoryIdentity) ([]string, error) {
	cached, err := c.cache.GetOrCreate("contributors:"+repo.FullName(), func() (interface{}, error) {
		result, err := c.cb.Execute(func() (interface{}, error) {
			contributors, _, err := c.client.Repositories.ListContributors(ctx, repo.Owner, repo.Name,
				&github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: 100}})
			if err != nil {
				return nil, fmt.Errorf("%w: listing contributors for %s: %v", vulnerability.ErrLookupFailure, repo.FullName(), err)
			}

			logins := make([]string, 0, len(contributors))
			for _, contributor := range contributors {
				logins = append(logins, contributor.GetLogin())
			}

			return logins, nil
		})
		if err != nil {
			return nil, err
		}

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return cached.([]string), nil
}

// Commit fetches the authored timestamp of one commit.
func (c *GithubClient) Commit(ctx context.Context, repo models.RepositoryIdentity, sha string) (vulnerability.Commit, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		commit, _, err := c.client.Repositories.GetCommit(ctx, repo.Owner, repo.Name, sha, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching commit %s of %s: %v", vulnerability.ErrLookupFailure, sha, repo.FullName(), err)
		}

		return vulnerability.Commit{
			AuthoredAt: commit.GetCommit().GetAuthor().GetDate().Time,
		}, nil
	})
	if err != nil {
		return vulnerability.Commit{}, err
	}

	return result.(vulnerability.Commit), nil
}

// LatestReleaseTag returns the tag of the newest published release, empty
// when the repository has none.
func (c *GithubClient) LatestReleaseTag(ctx context.Context, repo models.RepositoryIdentity) (string, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		release, response, err := c.client.Repositories.GetLatestRelease(ctx, repo.Owner, repo.Name)
		if err != nil {
			if response != nil && response.StatusCode == http.StatusNotFound {
				return "", nil
			}
			return nil, fmt.Errorf("%w: fetching latest release of %s: %v", vulnerability.ErrLookupFailure, repo.FullName(), err)
		}

		return release.GetTagName(), nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// Release fetches one release by tag.
func (c *GithubClient) Release(ctx context.Context, repo models.RepositoryIdentity, tag string) (vulnerability.Release, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		release, _, err := c.client.Repositories.GetReleaseByTag(ctx, repo.Owner, repo.Name, tag)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching release %s of %s: %v", vulnerability.ErrLookupFailure, tag, repo.FullName(), err)
		}

		return vulnerability.Release{
			Tag:         release.GetTagName(),
			PublishedAt: release.GetPublishedAt().Time,
		}, nil
	})
	if err != nil {
		return vulnerability.Release{}, err
	}

	return result.(vulnerability.Release), nil
}

func branchShortName(short string) string {
	return strings.TrimPrefix(short, "origin/")
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var unique []string
	for _, value := range values {
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}

	return unique
}
