package bot

import (
	"strconv"
	"testing"

	"github.com/m3rciful/relaybot/relay/engine"
	"github.com/m3rciful/relaybot/relay/session"
)

func TestUserMenuMarkupMatchesState(t *testing.T) {
	cases := []struct {
		state session.State
		want  string
	}{
		{session.Unrequested, cbUserApply},
		{session.Pending, cbUserCancel},
		{session.Active, cbUserEnd},
	}
	for _, tc := range cases {
		markup := UserMenuMarkup(tc.state)
		if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 1 {
			t.Fatalf("state %v: expected a single button, got %v", tc.state, markup.InlineKeyboard)
		}
		if got := markup.InlineKeyboard[0][0].Unique; got != tc.want {
			t.Errorf("state %v: button unique = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestPendingItemMarkupCarriesUserID(t *testing.T) {
	const userID int64 = 424242
	markup := PendingItemMarkup(userID)
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("expected one row with accept and reject, got %v", markup.InlineKeyboard)
	}
	want := strconv.FormatInt(userID, 10)
	for _, btn := range markup.InlineKeyboard[0] {
		if btn.Data != want {
			t.Errorf("button %q payload = %q, want %q", btn.Unique, btn.Data, want)
		}
	}
	if markup.InlineKeyboard[0][0].Unique != cbAdminAccept {
		t.Errorf("first button = %q, want %q", markup.InlineKeyboard[0][0].Unique, cbAdminAccept)
	}
	if markup.InlineKeyboard[0][1].Unique != cbAdminReject {
		t.Errorf("second button = %q, want %q", markup.InlineKeyboard[0][1].Unique, cbAdminReject)
	}
}

func TestActiveItemMarkupCarriesUserID(t *testing.T) {
	markup := ActiveItemMarkup(7)
	btn := markup.InlineKeyboard[0][0]
	if btn.Unique != cbAdminEnd || btn.Data != "7" {
		t.Errorf("got unique=%q data=%q, want unique=%q data=%q", btn.Unique, btn.Data, cbAdminEnd, "7")
	}
}

func TestRenderMenu(t *testing.T) {
	if got := RenderMenu(engine.MenuSpec{Kind: engine.MenuNone}); got != nil {
		t.Errorf("MenuNone should render nil markup, got %v", got)
	}

	user := RenderMenu(engine.UserMenu(session.Pending))
	if user.InlineKeyboard[0][0].Unique != cbUserCancel {
		t.Errorf("pending user menu = %q, want %q", user.InlineKeyboard[0][0].Unique, cbUserCancel)
	}

	panel := RenderMenu(engine.MenuSpec{Kind: engine.MenuOperatorPanel})
	if len(panel.InlineKeyboard) != 3 {
		t.Errorf("operator panel rows = %d, want 3", len(panel.InlineKeyboard))
	}

	item := RenderMenu(engine.MenuSpec{Kind: engine.MenuPendingItem, UserID: 99})
	if item.InlineKeyboard[0][0].Data != "99" {
		t.Errorf("pending item payload = %q, want %q", item.InlineKeyboard[0][0].Data, "99")
	}

	end := RenderMenu(engine.MenuSpec{Kind: engine.MenuActiveItem, UserID: 55})
	if end.InlineKeyboard[0][0].Unique != cbAdminEnd {
		t.Errorf("active item button = %q, want %q", end.InlineKeyboard[0][0].Unique, cbAdminEnd)
	}
}
