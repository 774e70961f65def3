package votes

// Kind names the namespace a voted-on content id belongs to.
type Kind string

const (
	KindPost           Kind = "post"
	KindComment        Kind = "comment"
	KindArticle        Kind = "article"
	KindArticleComment Kind = "article_comment"
)

// Kinds lists every votable kind in a stable order.
var Kinds = []Kind{KindPost, KindComment, KindArticle, KindArticleComment}

func (k Kind) Valid() bool {
	switch k {
	case KindPost, KindComment, KindArticle, KindArticleComment:
		return true
	}
	return false
}

// ParseKind rejects anything outside the closed set.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", ErrInvalidContentKind
	}
	return k, nil
}

// Direction is a voter's opinion. Neutral is never persisted.
type Direction int

const (
	Down    Direction = -1
	Neutral Direction = 0
	Up      Direction = 1
)

// ParseDirection accepts only the castable directions.
func ParseDirection(v int) (Direction, error) {
	switch Direction(v) {
	case Up, Down:
		return Direction(v), nil
	}
	return Neutral, ErrInvalidDirection
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "neutral"
}

// Target identifies one content item.
type Target struct {
	Kind Kind
	ID   int
}

func (t Target) validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidContentKind
	}
	if t.ID <= 0 {
		return ErrInvalidContentID
	}
	return nil
}

// Tally is the derived aggregate for one target.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	Score     int `json:"score"`
}

func newTally(up, down int) Tally {
	return Tally{Upvotes: up, Downvotes: down, Score: up - down}
}

// CastResult is a fresh tally plus the caller's resulting direction.
type CastResult struct {
	Tally
	UserVote Direction `json:"userVote"`
}
