package session

import (
	"sync"
	"testing"
)

func TestRequestConnectionIdempotent(t *testing.T) {
	r := NewRegistry(nil)

	if out := r.RequestConnection(100); out != Accepted {
		t.Fatalf("first request = %s, expected accepted", out)
	}
	for i := 0; i < 3; i++ {
		if out := r.RequestConnection(100); out != AlreadyPending {
			t.Fatalf("repeat request = %s, expected already_pending", out)
		}
	}
	if st := r.StateOf(100); st != Pending {
		t.Fatalf("state = %s, expected pending", st)
	}
}

func TestApproveMovesToActiveOnce(t *testing.T) {
	r := NewRegistry(nil)
	r.RequestConnection(100)

	if out := r.Approve(100); out != Approved {
		t.Fatalf("approve = %s, expected approved", out)
	}
	if st := r.StateOf(100); st != Active {
		t.Fatalf("state = %s, expected active", st)
	}
	if out := r.Approve(100); out != NotPending {
		t.Fatalf("second approve = %s, expected not_pending", out)
	}
}

func TestForceConnectFromAnyState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Registry)
	}{
		{"unrequested", func(r *Registry) {}},
		{"pending", func(r *Registry) { r.RequestConnection(7) }},
		{"active", func(r *Registry) { r.RequestConnection(7); r.Approve(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil)
			tt.setup(r)
			if out := r.ForceConnect(7); out != Connected {
				t.Fatalf("force connect = %s, expected connected", out)
			}
			if st := r.StateOf(7); st != Active {
				t.Fatalf("state = %s, expected active", st)
			}
		})
	}
}

func TestRequestCancelRoundTrip(t *testing.T) {
	r := NewRegistry(nil)

	r.RequestConnection(42)
	if out := r.CancelRequest(42); out != Cancelled {
		t.Fatalf("cancel = %s, expected cancelled", out)
	}
	if st := r.StateOf(42); st != Unrequested {
		t.Fatalf("state = %s, expected unrequested", st)
	}
	if out := r.CancelRequest(42); out != NotPending {
		t.Fatalf("cancel without request = %s, expected not_pending", out)
	}
}

func TestRejectAndEnd(t *testing.T) {
	r := NewRegistry(nil)

	r.RequestConnection(1)
	if out := r.Reject(1); out != Rejected {
		t.Fatalf("reject = %s, expected rejected", out)
	}
	if out := r.Reject(1); out != NotPending {
		t.Fatalf("reject again = %s, expected not_pending", out)
	}

	r.ForceConnect(1)
	if out := r.EndByUser(1); out != Ended {
		t.Fatalf("end by user = %s, expected ended", out)
	}
	if out := r.EndByOperator(1); out != NotActive {
		t.Fatalf("end without session = %s, expected not_active", out)
	}
}

func TestListSnapshots(t *testing.T) {
	r := NewRegistry(nil)
	r.RequestConnection(1)
	r.RequestConnection(2)
	r.RequestConnection(3)
	r.Approve(3)
	r.ForceConnect(4)

	pending := r.ListPending()
	if len(pending) != 2 {
		t.Fatalf("pending = %v, expected two entries", pending)
	}
	active := r.ListActive()
	if len(active) != 2 {
		t.Fatalf("active = %v, expected two entries", active)
	}

	p, a := r.Counts()
	if p != 2 || a != 2 {
		t.Fatalf("counts = %d/%d, expected 2/2", p, a)
	}
}

// Two near-simultaneous requests for the same user must produce exactly one
// Accepted outcome.
func TestConcurrentRequestsSameUser(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 32
	results := make(chan Outcome, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			results <- r.RequestConnection(900)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for out := range results {
		switch out {
		case Accepted:
			accepted++
		case AlreadyPending:
		default:
			t.Fatalf("unexpected outcome %s", out)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted %d times, expected exactly once", accepted)
	}
}

func TestConcurrentDistinctUsers(t *testing.T) {
	r := NewRegistry(nil)

	const users = 200
	var wg sync.WaitGroup
	wg.Add(users)
	for i := 0; i < users; i++ {
		go func(id int64) {
			defer wg.Done()
			r.RequestConnection(id)
			r.Approve(id)
		}(int64(i + 1))
	}
	wg.Wait()

	if active := r.ListActive(); len(active) != users {
		t.Fatalf("active = %d, expected %d", len(active), users)
	}
}

func TestObserverSeesTransitions(t *testing.T) {
	type event struct {
		userID   int64
		from, to State
		cause    Cause
	}
	var mu sync.Mutex
	var events []event

	r := NewRegistry(func(userID int64, from, to State, cause Cause) {
		mu.Lock()
		events = append(events, event{userID, from, to, cause})
		mu.Unlock()
	})

	r.RequestConnection(5)
	r.RequestConnection(5) // no transition, no event
	r.Approve(5)
	r.EndByOperator(5)

	mu.Lock()
	defer mu.Unlock()
	want := []event{
		{5, Unrequested, Pending, CauseRequest},
		{5, Pending, Active, CauseApprove},
		{5, Active, Unrequested, CauseOperatorEnd},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %d, expected %d", len(events), len(want))
	}
	for i, e := range events {
		if e != want[i] {
			t.Fatalf("event %d = %+v, expected %+v", i, e, want[i])
		}
	}
}
