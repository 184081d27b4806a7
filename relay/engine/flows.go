package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/relay/session"
)

// Counterpart notification texts. The acting party's own confirmation is
// rendered by the dispatcher that received the command or button press; the
// engine notifies the other side of every state change.
const (
	textRequestArrived  = "📌 New request from %s\nID: `%d`\nApprove?"
	textRequestCancel   = "ℹ️ User `%d` cancelled their request."
	textApprovedUser    = "✅ The operator approved your request. You are now connected."
	textApprovedConfirm = "🟢 Connected with user `%d`."
	textRejectedUser    = "Sorry, the operator declined your chat request."
	textConnectedUser   = "✅ The operator opened a direct chat channel with you."
	textEndedByUser     = "⚠️ User `%d` ended the session."
	textEndedByOperator = "⚠️ The operator ended this session."
)

// Request registers a user's connection request. On the first acceptance the
// operator is notified with an approve/reject item for the applicant;
// repeats change nothing and notify nobody. display names the applicant in
// the operator notice and may be empty.
func (e *Engine[M]) Request(ctx context.Context, userID int64, display string) session.Outcome {
	out := e.sessions.RequestConnection(userID)
	if out == session.Accepted {
		if display == "" {
			display = fmt.Sprintf("%d", userID)
		}
		e.transport.Notify(ctx, e.operatorID,
			fmt.Sprintf(textRequestArrived, display, userID),
			MenuSpec{Kind: MenuPendingItem, UserID: userID},
		)
	}
	e.logFlow(ctx, "flow.request", userID, out)
	return out
}

// Cancel withdraws a pending request. Only the operator is notified; the
// acting user sees the result directly from the dispatcher.
func (e *Engine[M]) Cancel(ctx context.Context, userID int64) session.Outcome {
	out := e.sessions.CancelRequest(userID)
	if out == session.Cancelled {
		e.transport.Notify(ctx, e.operatorID,
			fmt.Sprintf(textRequestCancel, userID),
			MenuSpec{Kind: MenuNone},
		)
	}
	e.logFlow(ctx, "flow.cancel", userID, out)
	return out
}

// Approve turns a pending request into an active session, telling the user
// they are connected and confirming the new session to the operator.
func (e *Engine[M]) Approve(ctx context.Context, userID int64) session.Outcome {
	out := e.sessions.Approve(userID)
	if out == session.Approved {
		e.transport.Notify(ctx, userID, textApprovedUser, UserMenu(session.Active))
		e.transport.Notify(ctx, e.operatorID,
			fmt.Sprintf(textApprovedConfirm, userID),
			MenuSpec{Kind: MenuNone},
		)
	}
	e.logFlow(ctx, "flow.approve", userID, out)
	return out
}

// Reject declines a pending request and tells the user.
func (e *Engine[M]) Reject(ctx context.Context, userID int64) session.Outcome {
	out := e.sessions.Reject(userID)
	if out == session.Rejected {
		e.transport.Notify(ctx, userID, textRejectedUser, UserMenu(session.Unrequested))
	}
	e.logFlow(ctx, "flow.reject", userID, out)
	return out
}

// Connect is the operator-initiated session start. It needs no prior
// request, always succeeds, and tells the user a channel is open. The
// operator's own confirmation comes from the dispatcher.
func (e *Engine[M]) Connect(ctx context.Context, userID int64) session.Outcome {
	out := e.sessions.ForceConnect(userID)
	e.transport.Notify(ctx, userID, textConnectedUser, UserMenu(session.Active))
	e.logFlow(ctx, "flow.connect", userID, out)
	return out
}

// EndByUser closes the user's active session and notifies the operator.
func (e *Engine[M]) EndByUser(ctx context.Context, userID int64) session.Outcome {
	out := e.sessions.EndByUser(userID)
	if out == session.Ended {
		e.routes.PurgeUser(userID)
		e.transport.Notify(ctx, e.operatorID,
			fmt.Sprintf(textEndedByUser, userID),
			MenuSpec{Kind: MenuNone},
		)
	}
	e.logFlow(ctx, "flow.end_by_user", userID, out)
	return out
}

// EndByOperator closes the user's active session and notifies the user.
func (e *Engine[M]) EndByOperator(ctx context.Context, userID int64) session.Outcome {
	out := e.sessions.EndByOperator(userID)
	if out == session.Ended {
		e.routes.PurgeUser(userID)
		e.transport.Notify(ctx, userID, textEndedByOperator, UserMenu(session.Unrequested))
	}
	e.logFlow(ctx, "flow.end_by_operator", userID, out)
	return out
}

func (e *Engine[M]) logFlow(ctx context.Context, event string, userID int64, out session.Outcome) {
	logger.Info(ctx, "relay", event,
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("result", out.String()),
	)
}
