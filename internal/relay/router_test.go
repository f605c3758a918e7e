package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ferrovax/voicebridge/internal/database"
	"github.com/ferrovax/voicebridge/internal/ledger"
	"github.com/ferrovax/voicebridge/internal/models"
)

type fakeNotifier struct {
	calls chan [2]string
}

func (f *fakeNotifier) NotifyIncomingCall(from, to string) {
	f.calls <- [2]string{from, to}
}

func newTestRouter(t *testing.T, notifier OfflineNotifier) (*Router, *Registry, *ledger.Ledger) {
	t.Helper()
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatalf("initialize database: %v", err)
	}
	calls := ledger.New(db)
	registry := NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(registry, calls, notifier, logger), registry, calls
}

func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case payload := <-client.send:
		return payload
	default:
		t.Fatalf("expected a queued message for %s", client.ID())
		return nil
	}
}

func assertIdle(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("unexpected message for %s: %s", client.ID(), payload)
	default:
	}
}

func TestRouteForwardsVerbatim(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)
	bob := newClient("conn-b", nil)

	router.Route([]byte(`{"type":"register","from":"alice"}`), alice)
	router.Route([]byte(`{"type":"register","from":"bob"}`), bob)

	payload := []byte(`{"type":"offer","from":"alice","to":"bob","data":{"sdp":"v=0 trailing   spaces"}}`)
	router.Route(payload, alice)

	forwarded := receive(t, bob)
	if !bytes.Equal(forwarded, payload) {
		t.Fatalf("payload mutated in transit:\nsent %s\ngot  %s", payload, forwarded)
	}
	assertIdle(t, alice)
}

func TestRegisterDoesNotForward(t *testing.T) {
	router, registry, _ := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)
	bob := newClient("conn-b", nil)

	router.Route([]byte(`{"type":"register","from":"bob"}`), bob)
	router.Route([]byte(`{"type":"register","from":"alice","to":"bob"}`), alice)

	assertIdle(t, bob)
	if _, ok := registry.Resolve("alice"); !ok {
		t.Fatalf("register did not bind alice")
	}
}

func TestFirstMessageBindsImplicitly(t *testing.T) {
	router, registry, _ := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)
	carol := newClient("conn-c", nil)

	router.Route([]byte(`{"type":"register","from":"alice"}`), alice)
	router.Route([]byte(`{"type":"offer","from":"carol","to":"alice","data":{}}`), carol)

	receive(t, alice)
	if client, ok := registry.Resolve("carol"); !ok || client != carol {
		t.Fatalf("first message did not bind carol's channel")
	}
}

func TestMissingToIsNotForwarded(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)

	router.Route([]byte(`{"type":"call-end","from":"alice"}`), alice)
	assertIdle(t, alice)
}

func TestUnreachableTargetRepliesError(t *testing.T) {
	router, _, calls := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)

	router.Route([]byte(`{"type":"call-request","from":"alice","to":"carol","data":{}}`), alice)

	var reply models.SignalingMessage
	if err := json.Unmarshal(receive(t, alice), &reply); err != nil {
		t.Fatalf("malformed error reply: %v", err)
	}
	if reply.Type != models.MessageError || reply.Message != "Target user not connected" || reply.TargetUser != "carol" {
		t.Fatalf("unexpected error reply: %+v", reply)
	}

	records, err := calls.RecentCalls("alice", 0)
	if err != nil {
		t.Fatalf("recent calls failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("unreachable call-request must not touch the ledger, got %+v", records)
	}
}

func TestInvalidMessageRepliesError(t *testing.T) {
	router, registry, _ := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)

	for _, payload := range []string{
		`{"type":"bogus","from":"alice"}`,
		`{"type":"offer"}`,
		`not json`,
	} {
		router.Route([]byte(payload), alice)

		var reply models.SignalingMessage
		if err := json.Unmarshal(receive(t, alice), &reply); err != nil {
			t.Fatalf("malformed error reply for %q: %v", payload, err)
		}
		if reply.Type != models.MessageError || reply.Message != "Invalid message format" {
			t.Fatalf("unexpected reply for %q: %+v", payload, reply)
		}
	}

	if registry.Count() != 0 {
		t.Fatalf("invalid messages must not bind identities")
	}
}

func TestCallRequestCreatesRecord(t *testing.T) {
	router, _, calls := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)
	bob := newClient("conn-b", nil)

	router.Route([]byte(`{"type":"register","from":"alice"}`), alice)
	router.Route([]byte(`{"type":"register","from":"bob"}`), bob)
	router.Route([]byte(`{"type":"call-request","from":"alice","to":"bob","data":{}}`), alice)

	receive(t, bob)

	records, err := calls.RecentCalls("bob", 0)
	if err != nil {
		t.Fatalf("recent calls failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	record := records[0]
	if record.CallerID != "alice" || record.CalleeID != "bob" ||
		record.Status != models.CallStatusInitiated || record.Duration != 0 {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestCallEndCompletesLatestRecord(t *testing.T) {
	router, _, calls := newTestRouter(t, nil)
	alice := newClient("conn-a", nil)
	bob := newClient("conn-b", nil)

	router.Route([]byte(`{"type":"register","from":"alice"}`), alice)
	router.Route([]byte(`{"type":"register","from":"bob"}`), bob)
	router.Route([]byte(`{"type":"call-request","from":"alice","to":"bob","data":{}}`), alice)
	receive(t, bob)

	// The callee hangs up: participants are matched in either role order.
	router.Route([]byte(`{"type":"call-end","from":"bob","to":"alice"}`), bob)
	receive(t, alice)

	records, err := calls.RecentCalls("alice", 0)
	if err != nil {
		t.Fatalf("recent calls failed: %v", err)
	}
	if len(records) != 1 || records[0].Status != models.CallStatusCompleted {
		t.Fatalf("expected completed record, got %+v", records)
	}
}

func TestUnreachableCallRequestNotifiesOffline(t *testing.T) {
	notifier := &fakeNotifier{calls: make(chan [2]string, 1)}
	router, _, _ := newTestRouter(t, notifier)
	alice := newClient("conn-a", nil)

	router.Route([]byte(`{"type":"call-request","from":"alice","to":"carol","data":{}}`), alice)

	select {
	case got := <-notifier.calls:
		if got != [2]string{"alice", "carol"} {
			t.Fatalf("unexpected notification: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an offline notification")
	}
}
