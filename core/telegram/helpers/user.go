package helpers

import (
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// DisplayName renders a user for operator-facing notices: "@username" when
// available, the numeric ID otherwise.
func DisplayName(user *tele.User) string {
	if user == nil {
		return ""
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return strconv.FormatInt(user.ID, 10)
}
