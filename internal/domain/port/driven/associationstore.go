package driven

import "context"

// AssociationStore defines the driven port for the many-to-many relation
// between a pull request and the team scope keys it was discovered under.
// ReplaceForPR overwrites the full set in one statement so a PR visible to
// two teams never transiently shows only one.
type AssociationStore interface {
	ReplaceForPR(ctx context.Context, repoFullName string, number int, scopeKeys []string) error
	ListForPR(ctx context.Context, repoFullName string, number int) ([]string, error)
}
