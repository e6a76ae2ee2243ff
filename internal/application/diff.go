package application

import "github.com/ericfisherdev/prmonitor/internal/domain/model"

// changeSet holds the disjoint classification of one poll's results against
// the previous snapshot.
type changeSet struct {
	added   []model.PullRequest
	updated []model.PullRequest
	closed  []model.PullRequest
}

func (c changeSet) empty() bool {
	return len(c.added) == 0 && len(c.updated) == 0 && len(c.closed) == 0
}

// diffRecords classifies each pull request as new, updated, or closed by
// comparing the current fetch result against the previous snapshot for the
// same scope. The update timestamp is the sole change signal, matching the
// source's own "last modified" semantics: an identical timestamp with
// different content is treated as unchanged. A PR present in the snapshot
// but absent from the fetch is inferred closed: it merely stopped appearing
// in the open result set, which cannot be distinguished from falling out of
// the fetch window.
func diffRecords(current []model.PullRequest, previous map[int]model.PullRequest) changeSet {
	var cs changeSet

	seen := make(map[int]bool, len(current))
	for _, pr := range current {
		seen[pr.Number] = true

		prev, ok := previous[pr.Number]
		switch {
		case !ok:
			cs.added = append(cs.added, pr)
		case !pr.UpdatedAt.Equal(prev.UpdatedAt):
			cs.updated = append(cs.updated, pr)
		}
	}

	for number, prev := range previous {
		if !seen[number] {
			cs.closed = append(cs.closed, prev)
		}
	}

	return cs
}
