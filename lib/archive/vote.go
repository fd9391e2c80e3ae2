package archive

import (
	"context"
	"sort"
	"strings"
)

// Vote is one user's stance on a similarity pairing between two bands. The
// site exposes no normative id for these, so the id is synthesized from the
// voter and the numerically-sorted band ids.
type Vote struct {
	resource
	user  *User
	bands []string
	score int
}

func (a *Archive) Vote(user *User, bandIds []string, score int) *Vote {
	sorted := make([]string, len(bandIds))
	copy(sorted, bandIds)
	sort.Slice(sorted, func(i, j int) bool {
		return compareIds(sorted[i], sorted[j]) < 0
	})
	id := user.exportKey() + ": " + strings.Join(sorted, ", ")

	e, _ := a.registry.getOrCreate(KindVote, id, func(id string) Entity {
		return &Vote{
			resource: resource{kind: KindVote, id: id, loaded: true},
			user:     user,
			bands:    sorted,
			score:    score,
		}
	})
	return e.(*Vote)
}

func (v *Vote) Load(ctx context.Context) error {
	return nil
}

// project reduces to the bare score: with no normative id there is nothing
// else worth carrying.
func (v *Vote) project() any {
	return v.score
}

func (v *Vote) ref() any {
	return v.score
}
