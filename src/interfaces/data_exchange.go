package interfaces

import (
	"context"

	"ledger-socket/src/models"
)

// -----------------------------------------------------------------------------
// IBroadcaster fans a mutation event out to live subscribers.
// -----------------------------------------------------------------------------

type IBroadcaster interface {
	// Broadcast queues event for every active subscriber. Failed deliveries
	// are handled inside the implementation and never reported back.
	Broadcast(event *models.MEvent)
}

// -----------------------------------------------------------------------------
// ICommandSender performs one command round trip against the socket server.
// -----------------------------------------------------------------------------

type ICommandSender interface {
	// Send writes command plus the line delimiter and returns the first
	// response line without its delimiter.
	Send(ctx context.Context, command string) (string, error)
}
