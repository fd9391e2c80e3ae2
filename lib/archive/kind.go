package archive

// Kind identifies one entity type in the exported graph. Band id 5 and
// release id 5 are unrelated objects.
type Kind string

const (
	KindBand    Kind = "band"
	KindArtist  Kind = "artist"
	KindLabel   Kind = "label"
	KindRelease Kind = "release"
	KindTrack   Kind = "track"
	KindMember  Kind = "member"
	KindRole    Kind = "role"
	KindReport  Kind = "report"
	KindEdit    Kind = "edit"
	KindReview  Kind = "review"
	KindLink    Kind = "link"
	KindVote    Kind = "vote"
	KindUser    Kind = "user"
)

// objectTypeID is the site-internal numeric code used by the report and
// history listing endpoints.
func (k Kind) objectTypeID() int {
	switch k {
	case KindBand:
		return 1
	case KindLabel:
		return 2
	case KindArtist:
		return 3
	case KindRelease:
		return 4
	}
	return 0
}
