package model

import "fmt"

// WatchFlags are the notification preferences shared by both subscription
// kinds. A pull request change triggers a push when WatchAll is set, or when
// one of the conditional flags matches the viewer's relationship to the PR.
type WatchFlags struct {
	WatchAll             bool
	WatchAssigned        bool
	WatchReviewRequested bool
}

// RepoSubscription watches a single repository's open pull requests.
type RepoSubscription struct {
	RepoFullName string
	WatchFlags
}

// ScopeKey returns the key this subscription is cached and persisted under.
func (s RepoSubscription) ScopeKey() string {
	return s.RepoFullName
}

// TeamSubscription watches the open pull requests authored by one
// organization team's members. Enabled allows temporary suspension without
// losing the subscription.
type TeamSubscription struct {
	Organization string
	TeamSlug     string
	WatchFlags
	Enabled bool
}

// ScopeKey returns the "org/team-slug" key this subscription is cached and
// persisted under.
func (s TeamSubscription) ScopeKey() string {
	return TeamScopeKey(s.Organization, s.TeamSlug)
}

// TeamScopeKey builds the scope key for an organization team.
func TeamScopeKey(org, teamSlug string) string {
	return org + "/" + teamSlug
}

func prKey(repoFullName string, number int) string {
	return fmt.Sprintf("%s#%d", repoFullName, number)
}
