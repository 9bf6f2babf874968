package relay

import "context"

// Journal mirrors relayed moves somewhere outside process memory for
// diagnostics. Implementations must not block the hub loop.
type Journal interface {
	Record(code string, rec MoveRecord)
	Seal(code string)
}

// Archive receives a summary of every room that leaves the registry.
type Archive interface {
	SaveRoom(ctx context.Context, s RoomSummary) error
}

type nopJournal struct{}

func NopJournal() Journal { return nopJournal{} }

func (nopJournal) Record(string, MoveRecord) {}
func (nopJournal) Seal(string)               {}
