package votes

import (
	"context"
	"math"
)

// BaseTemperature is the reputation of a user with no net votes received.
const BaseTemperature = 36.5

// Temperature maps a net received score to 36.5 + 0.01*net, rounded to one
// decimal. No clamping.
func Temperature(netScore int) float64 {
	// Work in tenths of a degree so 36.5 stays exact.
	return math.Round(BaseTemperature*10+float64(netScore)/10) / 10
}

// ContentOwnership resolves the content items a user currently owns.
type ContentOwnership interface {
	OwnedTargets(ctx context.Context, userID int) ([]Target, error)
}

// Reputation is the vote-derived standing of one user.
type Reputation struct {
	Received    Tally   `json:"received"`
	Temperature float64 `json:"temperature"`
}

// ReputationTemperature folds the tallies of every item the user owns.
func (l *Ledger) ReputationTemperature(ctx context.Context, userID int, owner ContentOwnership) (Reputation, error) {
	refs, err := owner.OwnedTargets(ctx, userID)
	if err != nil {
		return Reputation{}, err
	}
	received, err := l.ReceivedTally(ctx, refs)
	if err != nil {
		return Reputation{}, err
	}
	return Reputation{Received: received, Temperature: Temperature(received.Score)}, nil
}
