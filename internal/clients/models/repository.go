package models

import "fmt"

// RepositoryIdentity identifies a repository on a hosting platform. It is
// resolved once by the platform client and passed by value into every
// scoring call.
type RepositoryIdentity struct {
	Host          string `json:"host"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
	Archived      bool   `json:"archived"`
}

func (r RepositoryIdentity) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// BaseURL is the canonical web url of the repository, the anchor for
// evidence reference classification.
func (r RepositoryIdentity) BaseURL() string {
	return fmt.Sprintf("https://%s/%s/%s", r.Host, r.Owner, r.Name)
}
