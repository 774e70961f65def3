package votes

import "errors"

var (
	ErrInvalidContentKind = errors.New("invalid content type")
	ErrInvalidDirection   = errors.New("vote type must be 1 (upvote) or -1 (downvote)")
	ErrInvalidContentID   = errors.New("invalid content id")
	ErrInvalidVoter       = errors.New("invalid voter")
	ErrConflict           = errors.New("vote changed concurrently, retry")
)
