package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/remote"
)

// dismissedField is the array field on the user profile holding dismissed
// message ids.
const dismissedField = "dismissedMessages"

// ErrUnknownOperation is returned for an operation kind the writer does
// not handle. Such operations are never retried.
var ErrUnknownOperation = errors.New("unknown operation kind")

// RemoteWriter applies operations to the remote store. Every write is
// keyed so that replaying an operation leaves the same stored state.
type RemoteWriter struct {
	Store           remote.Store
	ReadStatusColl  string
	UsersCollection string
}

// Apply performs op against the remote store.
func (w *RemoteWriter) Apply(ctx context.Context, op model.PendingOperation) error {
	switch op.Kind {
	case model.OpMarkRead:
		state := model.ReadState{
			UserID:    op.UserID,
			MessageID: op.MessageID,
			Opened:    true,
			OpenedAt:  op.EnqueuedAt,
		}
		return w.Store.Set(ctx, w.ReadStatusColl, model.StatusKey(op.UserID, op.MessageID), state.Fields())
	case model.OpDismiss:
		return w.Store.UpdateSetField(ctx, w.UsersCollection, op.UserID, dismissedField, remote.SetAdd, op.MessageID)
	case model.OpUndismiss:
		return w.Store.UpdateSetField(ctx, w.UsersCollection, op.UserID, dismissedField, remote.SetRemove, op.MessageID)
	default:
		return fmt.Errorf("%w %q", ErrUnknownOperation, op.Kind)
	}
}
