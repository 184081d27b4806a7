package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/telegram/keyboard"
	"github.com/m3rciful/relaybot/relay/engine"
	"github.com/m3rciful/relaybot/relay/session"
)

// Callback keys shared between keyboard construction and handler wiring.
const (
	cbUserApply  = "user_apply"
	cbUserCancel = "user_cancel"
	cbUserEnd    = "user_end"

	cbAdminPending = "admin_view_pending"
	cbAdminActive  = "admin_view_active"
	cbAdminConnect = "admin_hint_connect"
	cbAdminAccept  = "admin_accept"
	cbAdminReject  = "admin_reject"
	cbAdminEnd     = "admin_end"
)

// UserMenuMarkup builds the user's main menu for a session state: apply when
// disconnected, cancel while waiting, end while connected.
func UserMenuMarkup(state session.State) *tele.ReplyMarkup {
	switch state {
	case session.Active:
		return keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "🔚 End session", Unique: cbUserEnd, Data: "end"},
		})
	case session.Pending:
		return keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "❌ Cancel request", Unique: cbUserCancel, Data: "cancel"},
		})
	default:
		return keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "📨 Request a chat", Unique: cbUserApply, Data: "apply"},
		})
	}
}

// OperatorPanelMarkup builds the operator's entry panel.
func OperatorPanelMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "📨 Requests", Unique: cbAdminPending, Data: "open"}},
		[]keyboard.InlineBtn{{Text: "🟢 Active sessions", Unique: cbAdminActive, Data: "open"}},
		[]keyboard.InlineBtn{{Text: "🔗 Direct connect", Unique: cbAdminConnect, Data: "open"}},
	)
}

// PendingItemMarkup builds accept/reject buttons for one applicant.
func PendingItemMarkup(userID int64) *tele.ReplyMarkup {
	payload := strconv.FormatInt(userID, 10)
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Accept", Unique: cbAdminAccept, Data: payload},
		{Text: "🚫 Reject", Unique: cbAdminReject, Data: payload},
	})
}

// ActiveItemMarkup builds the end-session button for one active user.
func ActiveItemMarkup(userID int64) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "🔚 End session", Unique: cbAdminEnd, Data: strconv.FormatInt(userID, 10)},
	})
}

// RenderMenu maps an engine menu spec to concrete markup. MenuNone yields nil
// so the message is sent without buttons.
func RenderMenu(spec engine.MenuSpec) *tele.ReplyMarkup {
	switch spec.Kind {
	case engine.MenuUser:
		switch {
		case spec.Active:
			return UserMenuMarkup(session.Active)
		case spec.Pending:
			return UserMenuMarkup(session.Pending)
		default:
			return UserMenuMarkup(session.Unrequested)
		}
	case engine.MenuOperatorPanel:
		return OperatorPanelMarkup()
	case engine.MenuPendingItem:
		return PendingItemMarkup(spec.UserID)
	case engine.MenuActiveItem:
		return ActiveItemMarkup(spec.UserID)
	}
	return nil
}
