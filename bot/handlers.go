package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	"github.com/m3rciful/relaybot/core/telegram/format"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/relay/engine"
	"github.com/m3rciful/relaybot/relay/session"
)

// Actor-side response texts. Counterpart notifications live in the relay
// engine; everything here answers the person who issued the command or
// pressed the button.
const (
	textStartUser     = "Hi! This bot relays your messages to the operator.\nRequest a chat to get started."
	textStartOperator = "Welcome back. Open the panel to manage requests and sessions."
	textHelpUser      = "Send /start and use the button to request a chat.\nOnce the operator approves, just type here and your messages reach them directly."
	textHelpOperator  = "Commands:\n/panel — requests and active sessions\n/connect <user\\_id> — open a session without a request\n/stats — session counters\n\nReply to a relayed message to answer its author."

	textPanel = "Operator panel.\nReview incoming requests, manage active sessions, or connect to a user directly."

	textApplied        = "✅ Request sent. Please wait for the operator's confirmation."
	textApplyPending   = "⏳ Your request is already in. Please wait or cancel it."
	textApplyActive    = "You are already connected. Just type your message."
	textCancelDone     = "Request cancelled."
	textCancelNothing  = "You have no open request."
	textUserEndDone    = "You ended the session with the operator."
	textUserEndNothing = "You have no active session."

	textAwaitingApproval = "⏳ Your request is waiting for the operator. Please wait or cancel it."
	textNotConnected     = "You are not connected to the operator yet. Request a chat first:"
	textUserSendFailed   = "Delivery failed, please try again later."

	textConnectUsage   = "Usage: /connect <user_id>"
	textConnectBadID   = "user_id must be a number."
	textNoReplyTarget  = "To answer a user, reply to one of their relayed messages, or use /connect <user\\_id>."
	textPendingEmpty   = "No pending requests."
	textPendingHeader  = "Pending requests:"
	textActiveEmpty    = "No active sessions."
	textActiveHeader   = "Active sessions:"
	textConnectHint    = "Send /connect <user\\_id> to open a session with a user directly. No request from them is needed."
	textStaleRequest   = "That user is no longer in the queue."
	textStaleSession   = "That user has no active session."
)

func (a *App) isOperator(c tele.Context) bool {
	return c.Sender() != nil && c.Sender().ID == a.engine.OperatorID()
}

// handleStart greets the sender with the menu matching their role and state.
func (a *App) handleStart(c tele.Context) error {
	if a.isOperator(c) {
		return tghelpers.SendMD(c, textStartOperator, OperatorPanelMarkup())
	}
	state := a.engine.Sessions().StateOf(c.Sender().ID)
	return tghelpers.SendMD(c, textStartUser, UserMenuMarkup(state))
}

func (a *App) handleHelp(c tele.Context) error {
	if a.isOperator(c) {
		return tghelpers.SendMD(c, textHelpOperator)
	}
	return tghelpers.SendMD(c, textHelpUser)
}

func (a *App) handlePanel(c tele.Context) error {
	return tghelpers.SendMD(c, textPanel, OperatorPanelMarkup())
}

// handleConnect opens a session with the given user, bypassing the request
// queue. The target is notified by the engine; this handler only confirms to
// the operator.
func (a *App) handleConnect(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return tghelpers.SendText(c, textConnectUsage)
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || userID == 0 {
		return tghelpers.SendText(c, textConnectBadID)
	}

	a.engine.Connect(tghelpers.BuildContext(c), userID)
	return tghelpers.SendMD(c, fmt.Sprintf("🟢 Session with user `%d` is open.", userID))
}

// handleStats reports in-memory session counters plus, when the audit journal
// is enabled, lifetime transition totals from storage.
func (a *App) handleStats(c tele.Context) error {
	pending, active := a.engine.Sessions().Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "Sessions now: %d pending, %d active.", pending, active)

	if a.audit != nil {
		totals, err := a.audit.Totals(tghelpers.BuildContext(c))
		if err != nil {
			b.WriteString("\nJournal totals unavailable.")
		} else if len(totals) > 0 {
			b.WriteString("\n\nAll-time transitions:")
			causes := make([]string, 0, len(totals))
			for cause := range totals {
				causes = append(causes, cause)
			}
			sort.Strings(causes)
			for _, cause := range causes {
				fmt.Fprintf(&b, "\n• %s: %d", cause, totals[cause])
			}
		}
	}
	return tghelpers.SendText(c, b.String())
}

// relayMessage handles every plain text or media update. Operator messages
// are routed back by their reply target; user messages are copied to the
// operator when a session is active.
func (a *App) relayMessage(c tele.Context) error {
	msg := c.Message()
	if msg == nil || c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	if a.isOperator(c) {
		replyTo := 0
		if msg.ReplyTo != nil {
			replyTo = msg.ReplyTo.ID
		}
		res := a.engine.RelayFromOperator(ctx, replyTo, msg)
		switch res.Verdict {
		case engine.Delivered:
			return tghelpers.SendMD(c, fmt.Sprintf("✉️ Delivered to user `%d`.", res.Target))
		case engine.DeliveryFailed:
			return tghelpers.SendMD(c, fmt.Sprintf("⚠️ Delivery to user `%d` failed. They may have blocked the bot.", res.Target))
		default:
			return tghelpers.SendMD(c, textNoReplyTarget, OperatorPanelMarkup())
		}
	}

	res := a.engine.RelayFromUser(ctx, c.Sender().ID, msg)
	switch res.Verdict {
	case engine.AwaitingApproval:
		return tghelpers.SendMD(c, textAwaitingApproval, UserMenuMarkup(session.Pending))
	case engine.NotConnected:
		return tghelpers.SendMD(c, textNotConnected, UserMenuMarkup(session.Unrequested))
	case engine.DeliveryFailed:
		return tghelpers.SendText(c, textUserSendFailed)
	}
	// Delivered: silence, the user should not be pinged for every message.
	return nil
}

func (a *App) cbUserApply(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	display := tghelpers.DisplayName(c.Sender())
	if escaped, err := format.EscapeMarkdown(display, format.MarkdownV1, ""); err == nil {
		display = escaped
	}
	out := a.engine.Request(ctx, c.Sender().ID, display)
	switch out {
	case session.Accepted:
		return tghelpers.EditMD(c, textApplied, UserMenuMarkup(session.Pending))
	case session.AlreadyPending:
		return tghelpers.EditMD(c, textApplyPending, UserMenuMarkup(session.Pending))
	default:
		return tghelpers.EditMD(c, textApplyActive, UserMenuMarkup(session.Active))
	}
}

func (a *App) cbUserCancel(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	if out := a.engine.Cancel(ctx, c.Sender().ID); out == session.Cancelled {
		return tghelpers.EditMD(c, textCancelDone, UserMenuMarkup(session.Unrequested))
	}
	state := a.engine.Sessions().StateOf(c.Sender().ID)
	return tghelpers.EditMD(c, textCancelNothing, UserMenuMarkup(state))
}

func (a *App) cbUserEnd(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	if out := a.engine.EndByUser(ctx, c.Sender().ID); out == session.Ended {
		return tghelpers.EditMD(c, textUserEndDone, UserMenuMarkup(session.Unrequested))
	}
	state := a.engine.Sessions().StateOf(c.Sender().ID)
	return tghelpers.EditMD(c, textUserEndNothing, UserMenuMarkup(state))
}

// cbAdminPending replaces the panel with the request list and sends one
// actionable item per applicant.
func (a *App) cbAdminPending(c tele.Context) error {
	if !a.isOperator(c) {
		return nil
	}
	pending := a.engine.Sessions().ListPending()
	if len(pending) == 0 {
		return tghelpers.EditMD(c, textPendingEmpty, OperatorPanelMarkup())
	}
	if err := tghelpers.EditMD(c, textPendingHeader); err != nil {
		return err
	}
	for _, userID := range pending {
		if err := tghelpers.SendMD(c, fmt.Sprintf("📌 Applicant ID: `%d`", userID), PendingItemMarkup(userID)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cbAdminActive(c tele.Context) error {
	if !a.isOperator(c) {
		return nil
	}
	active := a.engine.Sessions().ListActive()
	if len(active) == 0 {
		return tghelpers.EditMD(c, textActiveEmpty, OperatorPanelMarkup())
	}
	if err := tghelpers.EditMD(c, textActiveHeader); err != nil {
		return err
	}
	for _, userID := range active {
		if err := tghelpers.SendMD(c, fmt.Sprintf("🟢 Active user ID: `%d`", userID), ActiveItemMarkup(userID)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cbAdminConnectHint(c tele.Context) error {
	if !a.isOperator(c) {
		return nil
	}
	return tghelpers.EditMD(c, textConnectHint, OperatorPanelMarkup())
}

func (a *App) cbAdminAccept(c tele.Context) error {
	if !a.isOperator(c) {
		return nil
	}
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.registry.CallbackNotFound()(c)
	}
	ctx := tghelpers.BuildContext(c)
	if out := a.engine.Approve(ctx, userID); out == session.Approved {
		return tghelpers.EditMD(c, fmt.Sprintf("✅ Approved user `%d`.", userID))
	}
	return tghelpers.EditMD(c, textStaleRequest)
}

func (a *App) cbAdminReject(c tele.Context) error {
	if !a.isOperator(c) {
		return nil
	}
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.registry.CallbackNotFound()(c)
	}
	ctx := tghelpers.BuildContext(c)
	if out := a.engine.Reject(ctx, userID); out == session.Rejected {
		return tghelpers.EditMD(c, fmt.Sprintf("🚫 Rejected user `%d`.", userID))
	}
	return tghelpers.EditMD(c, textStaleRequest)
}

func (a *App) cbAdminEnd(c tele.Context) error {
	if !a.isOperator(c) {
		return nil
	}
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.registry.CallbackNotFound()(c)
	}
	ctx := tghelpers.BuildContext(c)
	if out := a.engine.EndByOperator(ctx, userID); out == session.Ended {
		return tghelpers.EditMD(c, fmt.Sprintf("🔚 Ended session with user `%d`.", userID))
	}
	return tghelpers.EditMD(c, textStaleSession)
}
