package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/relaybot/relay/routing"
	"github.com/m3rciful/relaybot/relay/session"
)

const operatorID int64 = 99

type delivery struct {
	target  int64
	content string
}

type notice struct {
	target int64
	text   string
	menu   MenuSpec
}

// fakeTransport records outbound traffic and hands out sequential message
// IDs. failFor makes deliveries to one target fail.
type fakeTransport struct {
	mu         sync.Mutex
	nextID     int
	failFor    int64
	deliveries []delivery
	notices    []notice
}

func (f *fakeTransport) DeliverCopy(_ context.Context, target int64, content string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != 0 && target == f.failFor {
		return 0, errors.New("blocked by recipient")
	}
	f.nextID++
	f.deliveries = append(f.deliveries, delivery{target: target, content: content})
	return f.nextID, nil
}

func (f *fakeTransport) Notify(_ context.Context, target int64, text string, menu MenuSpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{target: target, text: text, menu: menu})
}

func (f *fakeTransport) noticesFor(target int64) []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notice
	for _, n := range f.notices {
		if n.target == target {
			out = append(out, n)
		}
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine[string], *fakeTransport) {
	t.Helper()
	routes, err := routing.NewTable(0)
	if err != nil {
		t.Fatalf("routing table: %v", err)
	}
	transport := &fakeTransport{}
	eng := New[string](operatorID, session.NewRegistry(nil), routes, transport)
	return eng, transport
}

// A rejected user's next plain message prompts them to apply again.
func TestRejectedUserIsPromptedToApply(t *testing.T) {
	eng, transport := newTestEngine(t)
	ctx := context.Background()

	if out := eng.Request(ctx, 100, "alice"); out != session.Accepted {
		t.Fatalf("request = %s", out)
	}
	if got := eng.Sessions().StateOf(100); got != session.Pending {
		t.Fatalf("state = %s, expected pending", got)
	}

	if out := eng.Reject(ctx, 100); out != session.Rejected {
		t.Fatalf("reject = %s", out)
	}
	if got := eng.Sessions().StateOf(100); got != session.Unrequested {
		t.Fatalf("state = %s, expected unrequested", got)
	}

	res := eng.RelayFromUser(ctx, 100, "hello?")
	if res.Verdict != NotConnected {
		t.Fatalf("verdict = %s, expected not_connected", res.Verdict)
	}
	if len(transport.deliveries) != 0 {
		t.Fatalf("nothing should be relayed, got %v", transport.deliveries)
	}
}

// Operator-initiated connect, user message relay, and reply-based routing
// back to the same user.
func TestConnectRelayAndReply(t *testing.T) {
	eng, transport := newTestEngine(t)
	ctx := context.Background()

	if out := eng.Connect(ctx, 200); out != session.Connected {
		t.Fatalf("connect = %s", out)
	}

	res := eng.RelayFromUser(ctx, 200, "hello")
	if res.Verdict != Delivered || res.Target != operatorID {
		t.Fatalf("relay = %+v, expected delivery to operator", res)
	}
	if uid, ok := eng.Routes().ResolveUser(res.MessageID); !ok || uid != 200 {
		t.Fatalf("mapping for %d = %d/%v, expected 200", res.MessageID, uid, ok)
	}

	reply := eng.RelayFromOperator(ctx, res.MessageID, "hi there")
	if reply.Verdict != Delivered || reply.Target != 200 {
		t.Fatalf("reply = %+v, expected delivery to 200", reply)
	}
	last := transport.deliveries[len(transport.deliveries)-1]
	if last.target != 200 || last.content != "hi there" {
		t.Fatalf("last delivery = %+v", last)
	}
	// Back-reference refreshed, but the user-side copy must not resolve.
	if id, ok := eng.Routes().LastRelayOf(200); !ok || id != reply.MessageID {
		t.Fatalf("last relay = %d/%v, expected %d", id, ok, reply.MessageID)
	}
	if _, ok := eng.Routes().ResolveUser(reply.MessageID); ok {
		t.Fatal("user-side copy id should not be a reply target")
	}
}

// A delivery failure is reported and leaves the session Active.
func TestDeliveryFailureKeepsSessionActive(t *testing.T) {
	eng, transport := newTestEngine(t)
	ctx := context.Background()
	transport.failFor = operatorID

	eng.Connect(ctx, 300)
	res := eng.RelayFromUser(ctx, 300, "are you there?")
	if res.Verdict != DeliveryFailed {
		t.Fatalf("verdict = %s, expected delivery_failed", res.Verdict)
	}
	if res.Err == nil {
		t.Fatal("expected the delivery error to be carried")
	}
	if got := eng.Sessions().StateOf(300); got != session.Active {
		t.Fatalf("state = %s, session must survive a failed delivery", got)
	}
}

// Concurrent operator replies to two different users never swap targets.
func TestConcurrentRepliesNoSwap(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	eng.Connect(ctx, 1)
	eng.Connect(ctx, 2)
	m1 := eng.RelayFromUser(ctx, 1, "from one")
	m2 := eng.RelayFromUser(ctx, 2, "from two")

	var wg sync.WaitGroup
	results := make([]RelayResult, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = eng.RelayFromOperator(ctx, m1.MessageID, "to one")
	}()
	go func() {
		defer wg.Done()
		results[1] = eng.RelayFromOperator(ctx, m2.MessageID, "to two")
	}()
	wg.Wait()

	if results[0].Verdict != Delivered || results[0].Target != 1 {
		t.Fatalf("reply to one = %+v", results[0])
	}
	if results[1].Verdict != Delivered || results[1].Target != 2 {
		t.Fatalf("reply to two = %+v", results[1])
	}
}

func TestOperatorWithoutReplyTarget(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if res := eng.RelayFromOperator(ctx, 0, "hello?"); res.Verdict != NoReplyTarget {
		t.Fatalf("no reply: verdict = %s", res.Verdict)
	}
	if res := eng.RelayFromOperator(ctx, 12345, "hello?"); res.Verdict != NoReplyTarget {
		t.Fatalf("stale reply: verdict = %s", res.Verdict)
	}
}

func TestPendingUserIsRemindedToWait(t *testing.T) {
	eng, transport := newTestEngine(t)
	ctx := context.Background()

	eng.Request(ctx, 50, "")
	res := eng.RelayFromUser(ctx, 50, "anyone?")
	if res.Verdict != AwaitingApproval {
		t.Fatalf("verdict = %s, expected awaiting_approval", res.Verdict)
	}
	if len(transport.deliveries) != 0 {
		t.Fatal("pending user's message must not be relayed")
	}
}

func TestNotificationRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("request notifies operator with pending item", func(t *testing.T) {
		eng, transport := newTestEngine(t)
		eng.Request(ctx, 10, "bob")
		got := transport.noticesFor(operatorID)
		if len(got) != 1 {
			t.Fatalf("operator notices = %d, expected 1", len(got))
		}
		if got[0].menu.Kind != MenuPendingItem || got[0].menu.UserID != 10 {
			t.Fatalf("menu = %+v, expected pending item for 10", got[0].menu)
		}
		if !strings.Contains(got[0].text, "bob") {
			t.Fatalf("notice %q should name the applicant", got[0].text)
		}
		// Re-request is silent.
		eng.Request(ctx, 10, "bob")
		if n := len(transport.noticesFor(operatorID)); n != 1 {
			t.Fatalf("operator notices after repeat = %d, expected 1", n)
		}
	})

	t.Run("approve notifies both sides", func(t *testing.T) {
		eng, transport := newTestEngine(t)
		eng.Request(ctx, 10, "")
		eng.Approve(ctx, 10)
		user := transport.noticesFor(10)
		if len(user) != 1 || !user[0].menu.Active || user[0].menu.Kind != MenuUser {
			t.Fatalf("user notices = %+v, expected active user menu", user)
		}
		op := transport.noticesFor(operatorID)
		if len(op) != 2 { // request item + connection confirmation
			t.Fatalf("operator notices = %d, expected 2", len(op))
		}
		if !strings.Contains(op[1].text, fmt.Sprint(10)) {
			t.Fatalf("confirmation %q should name the user", op[1].text)
		}
	})

	t.Run("cancel notifies only operator", func(t *testing.T) {
		eng, transport := newTestEngine(t)
		eng.Request(ctx, 10, "")
		eng.Cancel(ctx, 10)
		if n := len(transport.noticesFor(10)); n != 0 {
			t.Fatalf("user notices = %d, expected none on cancel", n)
		}
		if n := len(transport.noticesFor(operatorID)); n != 2 {
			t.Fatalf("operator notices = %d, expected request + cancel", n)
		}
	})

	t.Run("end by user notifies only operator", func(t *testing.T) {
		eng, transport := newTestEngine(t)
		eng.Connect(ctx, 10)
		before := len(transport.noticesFor(10))
		eng.EndByUser(ctx, 10)
		if n := len(transport.noticesFor(10)); n != before {
			t.Fatal("user should not be notified about their own end action")
		}
		op := transport.noticesFor(operatorID)
		if len(op) != 1 || !strings.Contains(op[0].text, "ended") {
			t.Fatalf("operator notices = %+v, expected session-end notice", op)
		}
	})

	t.Run("end by operator notifies user", func(t *testing.T) {
		eng, transport := newTestEngine(t)
		eng.Connect(ctx, 10)
		eng.EndByOperator(ctx, 10)
		user := transport.noticesFor(10)
		if len(user) != 2 { // connect notice + end notice
			t.Fatalf("user notices = %d, expected 2", len(user))
		}
		menu := user[1].menu
		if menu.Kind != MenuUser || menu.Active || menu.Pending {
			t.Fatalf("menu = %+v, expected the apply menu", menu)
		}
	})
}

func TestEndPurgesRouting(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	eng.Connect(ctx, 77)
	res := eng.RelayFromUser(ctx, 77, "bye soon")
	eng.EndByOperator(ctx, 77)

	if _, ok := eng.Routes().LastRelayOf(77); ok {
		t.Fatal("back-reference should be purged when the session ends")
	}
	if _, ok := eng.Routes().ResolveUser(res.MessageID); ok {
		t.Fatal("forward mapping should be purged when the session ends")
	}
}

func TestStaleApprovalActions(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if out := eng.Approve(ctx, 5); out != session.NotPending {
		t.Fatalf("approve without request = %s", out)
	}
	if out := eng.Reject(ctx, 5); out != session.NotPending {
		t.Fatalf("reject without request = %s", out)
	}
	if out := eng.EndByOperator(ctx, 5); out != session.NotActive {
		t.Fatalf("end without session = %s", out)
	}
}
