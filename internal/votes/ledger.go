package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/models"
)

// maxCastAttempts bounds re-runs when a concurrent withdraw removes the row
// between our conflicting insert and the row lock.
const maxCastAttempts = 3

var errRowVanished = errors.New("vote row vanished before lock")

var voteKeyColumns = []clause.Column{{Name: "user_id"}, {Name: "content_type"}, {Name: "content_id"}}

const tallySelect = "COALESCE(SUM(CASE WHEN vote_type = 1 THEN 1 ELSE 0 END), 0) AS upvotes, " +
	"COALESCE(SUM(CASE WHEN vote_type = -1 THEN 1 ELSE 0 END), 0) AS downvotes"

type tallyRow struct {
	ContentID int
	Upvotes   int
	Downvotes int
}

// Ledger owns the vote rows and answers tally queries over them.
type Ledger struct {
	db    *gorm.DB
	cache TallyCache
	log   *logger.Logger
	now   func() time.Time
}

type Option func(*Ledger)

// WithCache puts a read-through tally cache in front of Aggregate.
func WithCache(cache TallyCache) Option {
	return func(l *Ledger) { l.cache = cache }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(db *gorm.DB, log *logger.Logger, opts ...Option) *Ledger {
	if log == nil {
		log = logger.Nop()
	}
	l := &Ledger{
		db:  db,
		log: log.With("component", "VoteLedger"),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cast applies the toggle rule for voter on target: insert when absent,
// delete when the stored direction matches (back to neutral), flip in place
// when it differs. Exactly one row is written per call.
func (l *Ledger) Cast(ctx context.Context, voter int, kind Kind, contentID int, dir Direction) (CastResult, error) {
	target := Target{Kind: kind, ID: contentID}
	if err := target.validate(); err != nil {
		return CastResult{}, err
	}
	if voter <= 0 {
		return CastResult{}, ErrInvalidVoter
	}
	if _, err := ParseDirection(int(dir)); err != nil {
		return CastResult{}, err
	}

	var (
		outcome Direction
		tally   Tally
		err     error
	)
	for attempt := 0; attempt < maxCastAttempts; attempt++ {
		outcome, tally, err = l.castOnce(ctx, voter, target, dir)
		if !errors.Is(err, errRowVanished) {
			break
		}
	}
	if errors.Is(err, errRowVanished) {
		err = ErrConflict
	}
	if err != nil {
		l.log.Error("vote cast failed",
			"user_id", voter, "content_type", kind, "content_id", contentID, "error", err)
		return CastResult{}, fmt.Errorf("cast vote: %w", err)
	}
	l.invalidate(ctx, target)

	l.log.Debug("vote cast",
		"user_id", voter, "content_type", kind, "content_id", contentID,
		"requested", dir.String(), "result", outcome.String())

	return CastResult{Tally: tally, UserVote: outcome}, nil
}

// castOnce writes the vote and reads the resulting tally in the same
// transaction.
func (l *Ledger) castOnce(ctx context.Context, voter int, target Target, dir Direction) (Direction, Tally, error) {
	var (
		result Direction
		tally  Tally
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()
		row := models.Vote{
			UserID:      voter,
			ContentType: string(target.Kind),
			ContentID:   target.ID,
			VoteType:    int(dir),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		// The unique (user_id, content_type, content_id) index is the
		// serialization point: at most one concurrent insert wins.
		ins := tx.Clauses(clause.OnConflict{Columns: voteKeyColumns, DoNothing: true}).Create(&row)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 1 {
			result = dir
			return readTally(tx, target, &tally)
		}

		var existing models.Vote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND content_type = ? AND content_id = ?", voter, string(target.Kind), target.ID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errRowVanished
		}
		if err != nil {
			return err
		}

		if Direction(existing.VoteType) == dir {
			if err := tx.Delete(&models.Vote{}, existing.ID).Error; err != nil {
				return err
			}
			result = Neutral
			return readTally(tx, target, &tally)
		}

		if err := tx.Model(&models.Vote{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{"vote_type": int(dir), "updated_at": now}).Error; err != nil {
			return err
		}
		result = dir
		return readTally(tx, target, &tally)
	})
	return result, tally, err
}

func readTally(db *gorm.DB, target Target, out *Tally) error {
	var row tallyRow
	err := db.Model(&models.Vote{}).
		Select(tallySelect).
		Where("content_type = ? AND content_id = ?", string(target.Kind), target.ID).
		Scan(&row).Error
	if err != nil {
		return fmt.Errorf("aggregate votes: %w", err)
	}
	*out = newTally(row.Upvotes, row.Downvotes)
	return nil
}

// Withdraw removes the voter's vote on target if there is one.
func (l *Ledger) Withdraw(ctx context.Context, voter int, kind Kind, contentID int) (Tally, error) {
	target := Target{Kind: kind, ID: contentID}
	if err := target.validate(); err != nil {
		return Tally{}, err
	}
	if voter <= 0 {
		return Tally{}, ErrInvalidVoter
	}

	res := l.db.WithContext(ctx).
		Where("user_id = ? AND content_type = ? AND content_id = ?", voter, string(kind), contentID).
		Delete(&models.Vote{})
	if res.Error != nil {
		l.log.Error("vote withdraw failed",
			"user_id", voter, "content_type", kind, "content_id", contentID, "error", res.Error)
		return Tally{}, fmt.Errorf("withdraw vote: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		l.invalidate(ctx, target)
	}
	return l.Aggregate(ctx, kind, contentID)
}

// Aggregate counts the votes on one target. Unknown targets yield zeros.
func (l *Ledger) Aggregate(ctx context.Context, kind Kind, contentID int) (Tally, error) {
	target := Target{Kind: kind, ID: contentID}
	if err := target.validate(); err != nil {
		return Tally{}, err
	}

	if l.cache != nil {
		tally, ok, err := l.cache.Get(ctx, target)
		if err != nil {
			l.log.Warn("tally cache read failed", "content_type", kind, "content_id", contentID, "error", err)
		} else if ok {
			return tally, nil
		}
	}

	var tally Tally
	if err := readTally(l.db.WithContext(ctx), target, &tally); err != nil {
		return Tally{}, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, target, tally); err != nil {
			l.log.Warn("tally cache write failed", "content_type", kind, "content_id", contentID, "error", err)
		}
	}
	return tally, nil
}

// AggregateMany tallies several targets of one kind in a single query. Ids
// without votes are present in the result with zero counts.
func (l *Ledger) AggregateMany(ctx context.Context, kind Kind, contentIDs []int) (map[int]Tally, error) {
	if !kind.Valid() {
		return nil, ErrInvalidContentKind
	}
	out := make(map[int]Tally, len(contentIDs))
	if len(contentIDs) == 0 {
		return out, nil
	}
	for _, id := range contentIDs {
		out[id] = Tally{}
	}

	var rows []tallyRow
	err := l.db.WithContext(ctx).Model(&models.Vote{}).
		Select("content_id, "+tallySelect).
		Where("content_type = ? AND content_id IN ?", string(kind), contentIDs).
		Group("content_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate votes: %w", err)
	}
	for _, r := range rows {
		out[r.ContentID] = newTally(r.Upvotes, r.Downvotes)
	}
	return out, nil
}

// UserDirection returns the voter's stored direction, Neutral when absent.
func (l *Ledger) UserDirection(ctx context.Context, voter int, kind Kind, contentID int) (Direction, error) {
	target := Target{Kind: kind, ID: contentID}
	if err := target.validate(); err != nil {
		return Neutral, err
	}

	var vote models.Vote
	err := l.db.WithContext(ctx).
		Select("vote_type").
		Where("user_id = ? AND content_type = ? AND content_id = ?", voter, string(kind), contentID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Neutral, nil
	}
	if err != nil {
		return Neutral, fmt.Errorf("load user vote: %w", err)
	}
	return Direction(vote.VoteType), nil
}

// ReceivedTally sums the tallies of a set of targets. Duplicate refs count
// once.
func (l *Ledger) ReceivedTally(ctx context.Context, refs []Target) (Tally, error) {
	byKind := make(map[Kind][]int)
	seen := make(map[Target]struct{}, len(refs))
	for _, ref := range refs {
		if err := ref.validate(); err != nil {
			return Tally{}, err
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		byKind[ref.Kind] = append(byKind[ref.Kind], ref.ID)
	}

	var up, down int
	for _, kind := range Kinds {
		ids := byKind[kind]
		if len(ids) == 0 {
			continue
		}
		var row tallyRow
		err := l.db.WithContext(ctx).Model(&models.Vote{}).
			Select(tallySelect).
			Where("content_type = ? AND content_id IN ?", string(kind), ids).
			Scan(&row).Error
		if err != nil {
			return Tally{}, fmt.Errorf("sum received votes: %w", err)
		}
		up += row.Upvotes
		down += row.Downvotes
	}
	return newTally(up, down), nil
}

func (l *Ledger) invalidate(ctx context.Context, target Target) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, target); err != nil {
		l.log.Warn("tally cache invalidate failed",
			"content_type", target.Kind, "content_id", target.ID, "error", err)
	}
}
