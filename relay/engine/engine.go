// Package engine decides what happens to every inbound message and every
// approval-workflow action: forward and record, reject with a reason, or
// prompt for the next step. It owns neither the session states nor the
// routing entries; it reads and writes them through relay/session and
// relay/routing and performs outbound sends through the injected Transport.
package engine

import (
	"context"
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/relay/routing"
	"github.com/m3rciful/relaybot/relay/session"
)

// Menu identifies which button set the transport should render alongside a
// notification. The engine only names the kind and its parameters; layout
// belongs to the transport side.
type Menu uint8

const (
	// MenuNone sends plain text without buttons.
	MenuNone Menu = iota
	// MenuUser is the user's main menu: apply, cancel, or end, depending
	// on the Pending/Active flags.
	MenuUser
	// MenuOperatorPanel is the operator's entry panel.
	MenuOperatorPanel
	// MenuPendingItem carries accept/reject buttons for one applicant.
	MenuPendingItem
	// MenuActiveItem carries an end-session button for one active user.
	MenuActiveItem
)

// MenuSpec parameterizes a Menu kind.
type MenuSpec struct {
	Kind    Menu
	Pending bool
	Active  bool
	UserID  int64
}

// UserMenu builds a MenuSpec for the user menu matching a session state.
func UserMenu(state session.State) MenuSpec {
	return MenuSpec{
		Kind:    MenuUser,
		Pending: state == session.Pending,
		Active:  state == session.Active,
	}
}

// Transport is the outbound side of the relay. M is the opaque message
// content type; the engine never inspects it.
//
// DeliverCopy sends a copy of content to target and returns the identifier
// of the newly created message. Notify is best effort: failures are logged
// by the transport, never surfaced here.
type Transport[M any] interface {
	DeliverCopy(ctx context.Context, target int64, content M) (int, error)
	Notify(ctx context.Context, target int64, text string, menu MenuSpec)
}

// Verdict classifies the engine's decision about an inbound message.
type Verdict uint8

const (
	// Delivered: the copy reached the counterpart and routing was updated.
	Delivered Verdict = iota
	// DeliveryFailed: the outbound copy failed; the session is untouched
	// and the sender should be told.
	DeliveryFailed
	// AwaitingApproval: the user is Pending and should wait or cancel.
	AwaitingApproval
	// NotConnected: the user has no session and should be prompted to apply.
	NotConnected
	// NoReplyTarget: the operator's message referenced nothing routable.
	NoReplyTarget
)

// String returns the lowercase verdict name used in logs.
func (v Verdict) String() string {
	switch v {
	case Delivered:
		return "delivered"
	case DeliveryFailed:
		return "delivery_failed"
	case AwaitingApproval:
		return "awaiting_approval"
	case NotConnected:
		return "not_connected"
	case NoReplyTarget:
		return "no_reply_target"
	default:
		return "unknown"
	}
}

// RelayResult is the engine's decision about one inbound message.
type RelayResult struct {
	Verdict   Verdict
	Target    int64 // counterpart the copy went to, when delivered
	MessageID int   // identifier of the delivered copy
	Err       error // delivery error, when Verdict is DeliveryFailed
}

// Engine routes messages between users and the single operator.
type Engine[M any] struct {
	operatorID int64
	sessions   *session.Registry
	routes     *routing.Table
	transport  Transport[M]
}

// New wires an engine against its collaborators.
func New[M any](operatorID int64, sessions *session.Registry, routes *routing.Table, transport Transport[M]) *Engine[M] {
	return &Engine[M]{
		operatorID: operatorID,
		sessions:   sessions,
		routes:     routes,
		transport:  transport,
	}
}

// OperatorID returns the configured operator identity.
func (e *Engine[M]) OperatorID() int64 { return e.operatorID }

// Sessions exposes the registry for read-side consumers (menus, listings).
func (e *Engine[M]) Sessions() *session.Registry { return e.sessions }

// Routes exposes the routing table for informational lookups.
func (e *Engine[M]) Routes() *routing.Table { return e.routes }

// RelayFromUser handles a plain message sent by a user. Only Active users
// are relayed; a single delivery failure reports back but never ends the
// session.
func (e *Engine[M]) RelayFromUser(ctx context.Context, userID int64, content M) RelayResult {
	state := e.sessions.StateOf(userID)
	switch state {
	case session.Pending:
		return RelayResult{Verdict: AwaitingApproval}
	case session.Unrequested:
		return RelayResult{Verdict: NotConnected}
	}

	// State read is complete; no registry lock is held during the send.
	messageID, err := e.transport.DeliverCopy(ctx, e.operatorID, content)
	if err != nil {
		logger.Warn(ctx, "relay", "relay.user.fail",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return RelayResult{Verdict: DeliveryFailed, Target: e.operatorID, Err: err}
	}

	e.routes.RecordRelay(messageID, userID)
	logger.Debug(ctx, "relay", "relay.user.delivered",
		slog.Int64("user_id", userID),
		slog.Int("msg_id", messageID),
	)
	return RelayResult{Verdict: Delivered, Target: e.operatorID, MessageID: messageID}
}

// RelayFromOperator handles a plain message sent by the operator. The
// message must reply to a previously relayed message; otherwise the
// operator is prompted to use the panel or the direct-connect command.
// replyTo is the replied-to message identifier, zero when absent.
func (e *Engine[M]) RelayFromOperator(ctx context.Context, replyTo int, content M) RelayResult {
	if replyTo == 0 {
		return RelayResult{Verdict: NoReplyTarget}
	}
	userID, ok := e.routes.ResolveUser(replyTo)
	if !ok {
		return RelayResult{Verdict: NoReplyTarget}
	}

	messageID, err := e.transport.DeliverCopy(ctx, userID, content)
	if err != nil {
		logger.Warn(ctx, "relay", "relay.operator.fail",
			slog.Int64("target_id", userID),
			slog.String("err", err.Error()),
		)
		return RelayResult{Verdict: DeliveryFailed, Target: userID, Err: err}
	}

	e.routes.RecordLast(userID, messageID)
	logger.Debug(ctx, "relay", "relay.operator.delivered",
		slog.Int64("target_id", userID),
		slog.Int("msg_id", messageID),
	)
	return RelayResult{Verdict: Delivered, Target: userID, MessageID: messageID}
}
