package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"modchat/internal/app/message"
	"modchat/internal/app/user"
	"modchat/internal/pkg/errs"
)

type testBench struct {
	hub       *Hub
	directory *fakeDirectory
	store     *fakeStore
}

func newTestBench() *testBench {
	directory := newFakeDirectory(
		user.User{ID: "u1", Username: "alice"},
		user.User{ID: "u2", Username: "bob"},
		user.User{ID: "a1", Username: "mod", IsAdmin: true},
	)
	store := newFakeStore(map[string]string{
		"u1": "alice",
		"u2": "bob",
		"a1": "mod",
	})
	return &testBench{
		hub:       NewHub(directory, store),
		directory: directory,
		store:     store,
	}
}

// connect opens an identified session for the given user.
func (b *testBench) connect(t *testing.T, userID string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	session := b.hub.NewSession(conn)
	session.Identify(context.Background(), userID)
	if _, ok := b.hub.Registry().Lookup(userID); !ok {
		t.Fatalf("user %s not registered after identify", userID)
	}
	return session, conn
}

func action(t *testing.T, actionType string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(Action{Type: actionType, Payload: mustRaw(t, payload)})
	if err != nil {
		t.Fatalf("marshal action: %v", err)
	}
	return data
}

func mustRaw(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestSessionIdentifyBroadcastsPresence(t *testing.T) {
	bench := newTestBench()

	_, aliceConn := bench.connect(t, "u1")
	_, bobConn := bench.connect(t, "u2")

	// Alice was online for both broadcasts, Bob only for the second.
	if got := aliceConn.countEvents(t, EventOnlineUsers); got != 2 {
		t.Errorf("alice received %d online_users snapshots, want 2", got)
	}
	if got := bobConn.countEvents(t, EventOnlineUsers); got != 1 {
		t.Errorf("bob received %d online_users snapshots, want 1", got)
	}

	ev := bobConn.lastEvent(t, EventOnlineUsers)
	var online []OnlineUser
	if err := json.Unmarshal(ev.Payload, &online); err != nil {
		t.Fatalf("undecodable online_users payload: %v", err)
	}
	if len(online) != 2 || online[0].Username != "alice" || online[1].Username != "bob" {
		t.Errorf("unexpected snapshot %+v, want alice then bob", online)
	}
}

func TestSessionIdentifyViaConnectAction(t *testing.T) {
	bench := newTestBench()

	conn := &fakeConn{}
	session := bench.hub.NewSession(conn)
	session.HandleAction(context.Background(), action(t, ActionUserConnected, ConnectPayload{UserID: "u1"}))

	if _, ok := bench.hub.Registry().Lookup("u1"); !ok {
		t.Fatal("user_connected action did not register the user")
	}
}

func TestSessionIdentifyBareStringPayload(t *testing.T) {
	bench := newTestBench()

	conn := &fakeConn{}
	session := bench.hub.NewSession(conn)
	session.HandleAction(context.Background(), []byte(`{"type":"user_connected","payload":"u2"}`))

	if _, ok := bench.hub.Registry().Lookup("u2"); !ok {
		t.Fatal("bare string user id was not accepted")
	}
}

func TestSessionIdentifyUnknownUserStaysUnauthenticated(t *testing.T) {
	bench := newTestBench()

	conn := &fakeConn{}
	session := bench.hub.NewSession(conn)
	session.Identify(context.Background(), "ghost")

	if _, ok := bench.hub.Registry().Lookup("ghost"); ok {
		t.Fatal("unknown user must not be registered")
	}
	// No error frame either; the client may retry with a valid id.
	if got := conn.countEvents(t, EventMessageError); got != 0 {
		t.Errorf("received %d error events, want 0", got)
	}

	session.HandleAction(context.Background(), action(t, ActionSendPublicMessage, PublicMessagePayload{Content: "hi"}))
	if conn.lastEvent(t, EventMessageError) == nil {
		t.Error("sending while unauthenticated should produce message_error")
	}
}

func TestSessionLastConnectWinsKicksOldConnection(t *testing.T) {
	bench := newTestBench()

	firstSession, firstConn := bench.connect(t, "u1")

	secondConn := &fakeConn{}
	second := bench.hub.NewSession(secondConn)
	second.Identify(context.Background(), "u1")

	if !firstConn.wasKicked() {
		t.Fatal("superseded connection was not kicked")
	}
	if want := errs.NewError(errs.ErrSessionReplaced).Message; firstConn.kickReason != want {
		t.Errorf("kick reason = %q, want %q", firstConn.kickReason, want)
	}

	conn, ok := bench.hub.Registry().Lookup("u1")
	if !ok || conn != Conn(secondConn) {
		t.Fatal("registry does not hold the newest connection")
	}

	// The old connection's read loop ends after the kick. Its Close must not
	// evict the new connection.
	firstSession.Close()
	if _, ok := bench.hub.Registry().Lookup("u1"); !ok {
		t.Fatal("superseded connection's close evicted the live presence entry")
	}
}

func TestSessionCloseRemovesPresence(t *testing.T) {
	bench := newTestBench()

	session, _ := bench.connect(t, "u1")
	_, bobConn := bench.connect(t, "u2")

	before := bobConn.countEvents(t, EventOnlineUsers)
	session.Close()

	if _, ok := bench.hub.Registry().Lookup("u1"); ok {
		t.Fatal("closed session still present in registry")
	}
	if got := bobConn.countEvents(t, EventOnlineUsers); got != before+1 {
		t.Errorf("remaining client got %d snapshots after close, want %d", got, before+1)
	}
}

func TestSessionInvalidFrame(t *testing.T) {
	bench := newTestBench()
	session, conn := bench.connect(t, "u1")

	session.HandleAction(context.Background(), []byte(`not json`))
	if conn.lastEvent(t, EventMessageError) == nil {
		t.Error("invalid frame should produce message_error")
	}

	// The session survives and keeps handling actions.
	session.HandleAction(context.Background(), action(t, ActionSendPublicMessage, PublicMessagePayload{Content: "still here"}))
	if conn.lastEvent(t, EventMessageSentForApproval) == nil {
		t.Error("session did not recover after an invalid frame")
	}
}

func TestSessionUnsupportedAction(t *testing.T) {
	bench := newTestBench()
	session, conn := bench.connect(t, "u1")

	session.HandleAction(context.Background(), []byte(`{"type":"dance"}`))
	if conn.lastEvent(t, EventMessageError) == nil {
		t.Error("unsupported action should produce message_error")
	}
}

func TestSessionPublicMessageFlow(t *testing.T) {
	bench := newTestBench()

	aliceSession, aliceConn := bench.connect(t, "u1")
	_, bobConn := bench.connect(t, "u2")
	adminSession, adminConn := bench.connect(t, "a1")

	aliceSession.HandleAction(context.Background(), action(t, ActionSendPublicMessage, PublicMessagePayload{Content: "hello"}))

	// Only the admin sees the pending message; Bob sees nothing yet.
	pending := adminConn.lastEvent(t, EventPendingApproval)
	if pending == nil {
		t.Fatal("admin did not receive pending_approval")
	}
	var pendingMsg message.PublicMessage
	if err := json.Unmarshal(pending.Payload, &pendingMsg); err != nil {
		t.Fatalf("undecodable pending payload: %v", err)
	}
	if pendingMsg.Content != "hello" || pendingMsg.Sender.Username != "alice" || pendingMsg.Approved {
		t.Errorf("unexpected pending message %+v", pendingMsg)
	}
	if got := bobConn.countEvents(t, EventPendingApproval); got != 0 {
		t.Errorf("non-admin received %d pending_approval events, want 0", got)
	}

	ack := aliceConn.lastEvent(t, EventMessageSentForApproval)
	if ack == nil {
		t.Fatal("sender did not receive submission ack")
	}
	var ackPayload AckPayload
	if err := json.Unmarshal(ack.Payload, &ackPayload); err != nil {
		t.Fatalf("undecodable ack payload: %v", err)
	}
	if ackPayload.MessageID != pendingMsg.ID {
		t.Errorf("ack names %q, pending message is %q", ackPayload.MessageID, pendingMsg.ID)
	}

	adminSession.HandleAction(context.Background(), action(t, ActionApproveMessage, ModerationPayload{MessageID: pendingMsg.ID}))

	// Approval reaches every client, including the original sender and the
	// acting admin.
	for name, conn := range map[string]*fakeConn{"alice": aliceConn, "bob": bobConn, "admin": adminConn} {
		ev := conn.lastEvent(t, EventApprovedMessage)
		if ev == nil {
			t.Fatalf("%s did not receive approved_message", name)
		}
		var approved message.PublicMessage
		if err := json.Unmarshal(ev.Payload, &approved); err != nil {
			t.Fatalf("undecodable approved payload: %v", err)
		}
		if !approved.Approved || approved.ApprovedBy == nil || approved.ApprovedBy.Username != "mod" {
			t.Errorf("%s got approved message without moderator attribution: %+v", name, approved)
		}
	}

	// Admin UIs additionally get the pending-list removal notice.
	if adminConn.lastEvent(t, EventMessageApproved) == nil {
		t.Error("admin did not receive message_approved notice")
	}
	if got := bobConn.countEvents(t, EventMessageApproved); got != 0 {
		t.Errorf("non-admin received %d message_approved notices, want 0", got)
	}
}

func TestSessionRejectPurgesMessage(t *testing.T) {
	bench := newTestBench()

	aliceSession, _ := bench.connect(t, "u1")
	adminSession, adminConn := bench.connect(t, "a1")
	_, bobConn := bench.connect(t, "u2")

	aliceSession.HandleAction(context.Background(), action(t, ActionSendPublicMessage, PublicMessagePayload{Content: "spam"}))
	pending := adminConn.lastEvent(t, EventPendingApproval)
	if pending == nil {
		t.Fatal("admin did not receive pending_approval")
	}
	var pendingMsg message.PublicMessage
	if err := json.Unmarshal(pending.Payload, &pendingMsg); err != nil {
		t.Fatalf("undecodable pending payload: %v", err)
	}

	adminSession.HandleAction(context.Background(), action(t, ActionRejectMessage, ModerationPayload{MessageID: pendingMsg.ID}))

	if bench.store.getPublic(pendingMsg.ID) != nil {
		t.Error("rejected message still present in store")
	}
	if adminConn.lastEvent(t, EventMessageRejected) == nil {
		t.Error("admin did not receive message_rejected notice")
	}
	if got := bobConn.countEvents(t, EventApprovedMessage); got != 0 {
		t.Errorf("rejected message was broadcast %d times, want 0", got)
	}
	if got := bobConn.countEvents(t, EventMessageRejected); got != 0 {
		t.Errorf("non-admin received %d rejection notices, want 0", got)
	}
}

func TestSessionModerationRequiresAdmin(t *testing.T) {
	bench := newTestBench()

	aliceSession, aliceConn := bench.connect(t, "u1")
	_, adminConn := bench.connect(t, "a1")

	aliceSession.HandleAction(context.Background(), action(t, ActionSendPublicMessage, PublicMessagePayload{Content: "hello"}))
	pending := adminConn.lastEvent(t, EventPendingApproval)
	var pendingMsg message.PublicMessage
	if err := json.Unmarshal(pending.Payload, &pendingMsg); err != nil {
		t.Fatalf("undecodable pending payload: %v", err)
	}

	for _, actionType := range []string{ActionApproveMessage, ActionRejectMessage} {
		aliceSession.HandleAction(context.Background(), action(t, actionType, ModerationPayload{MessageID: pendingMsg.ID}))
	}

	if got := aliceConn.countEvents(t, EventMessageError); got != 2 {
		t.Errorf("non-admin moderation produced %d error events, want 2", got)
	}
	stored := bench.store.getPublic(pendingMsg.ID)
	if stored == nil || stored.Approved {
		t.Error("non-admin moderation mutated the message")
	}
}

func TestSessionApproveUnknownMessage(t *testing.T) {
	bench := newTestBench()

	adminSession, adminConn := bench.connect(t, "a1")
	adminSession.HandleAction(context.Background(), action(t, ActionApproveMessage, ModerationPayload{MessageID: "nope"}))

	if adminConn.lastEvent(t, EventMessageError) == nil {
		t.Error("approving a nonexistent message should produce message_error")
	}
	if got := adminConn.countEvents(t, EventApprovedMessage); got != 0 {
		t.Errorf("nonexistent approval was broadcast %d times, want 0", got)
	}
}

func TestSessionApproveAcceptsBareStringPayload(t *testing.T) {
	bench := newTestBench()

	aliceSession, _ := bench.connect(t, "u1")
	adminSession, adminConn := bench.connect(t, "a1")

	aliceSession.HandleAction(context.Background(), action(t, ActionSendPublicMessage, PublicMessagePayload{Content: "hello"}))
	pending := adminConn.lastEvent(t, EventPendingApproval)
	var pendingMsg message.PublicMessage
	if err := json.Unmarshal(pending.Payload, &pendingMsg); err != nil {
		t.Fatalf("undecodable pending payload: %v", err)
	}

	frame := fmt.Sprintf(`{"type":"approve_message","payload":%q}`, pendingMsg.ID)
	adminSession.HandleAction(context.Background(), []byte(frame))

	if adminConn.lastEvent(t, EventApprovedMessage) == nil {
		t.Error("bare string message id was not accepted for approval")
	}
}

func TestSessionPrivateMessageFlow(t *testing.T) {
	bench := newTestBench()

	aliceSession, aliceConn := bench.connect(t, "u1")
	_, bobConn := bench.connect(t, "u2")

	aliceSession.HandleAction(context.Background(), action(t, ActionSendPrivateMessage, PrivateMessagePayload{Recipient: "u2", Content: "psst"}))

	received := bobConn.lastEvent(t, EventReceivePrivateMessage)
	if received == nil {
		t.Fatal("recipient did not receive the private message")
	}
	var pm message.PrivateMessage
	if err := json.Unmarshal(received.Payload, &pm); err != nil {
		t.Fatalf("undecodable private message payload: %v", err)
	}
	if pm.Content != "psst" || pm.Sender.Username != "alice" || pm.Recipient.Username != "bob" {
		t.Errorf("unexpected private message %+v", pm)
	}

	if got := aliceConn.countEvents(t, EventPrivateMessageSent); got != 1 {
		t.Errorf("sender got %d sent confirmations, want exactly 1", got)
	}
	if got := aliceConn.countEvents(t, EventReceivePrivateMessage); got != 0 {
		t.Errorf("sender got %d receive events, want 0", got)
	}
	if got := bobConn.countEvents(t, EventReceivePrivateMessage); got != 1 {
		t.Errorf("recipient got %d receive events, want exactly 1", got)
	}
}

func TestSessionPrivateMessageOfflineRecipientPersists(t *testing.T) {
	bench := newTestBench()

	aliceSession, aliceConn := bench.connect(t, "u1")
	aliceSession.HandleAction(context.Background(), action(t, ActionSendPrivateMessage, PrivateMessagePayload{Recipient: "u2", Content: "later"}))

	// Bob is offline; the message is stored and the sender still gets the echo.
	if got := aliceConn.countEvents(t, EventPrivateMessageSent); got != 1 {
		t.Errorf("sender got %d sent confirmations, want 1", got)
	}
	if len(bench.store.private) != 1 {
		t.Fatalf("store holds %d private messages, want 1", len(bench.store.private))
	}
}

func TestSessionPrivateMessageContentRules(t *testing.T) {
	bench := newTestBench()

	session, conn := bench.connect(t, "u1")

	for _, content := range []string{"", "   ", strings.Repeat("a", MaxContentBytes+1)} {
		session.HandleAction(context.Background(), action(t, ActionSendPrivateMessage, PrivateMessagePayload{Recipient: "u2", Content: content}))
	}

	if got := conn.countEvents(t, EventMessageError); got != 3 {
		t.Errorf("invalid content produced %d error events, want 3", got)
	}
	if len(bench.store.private) != 0 {
		t.Errorf("invalid private messages were persisted")
	}
}

func TestSessionPrivateMessageToSelf(t *testing.T) {
	bench := newTestBench()

	session, conn := bench.connect(t, "u1")
	session.HandleAction(context.Background(), action(t, ActionSendPrivateMessage, PrivateMessagePayload{Recipient: "u1", Content: "me"}))

	if conn.lastEvent(t, EventMessageError) == nil {
		t.Error("self-addressed private message should produce message_error")
	}
	if len(bench.store.private) != 0 {
		t.Errorf("self-addressed message was persisted")
	}
}

func TestSessionPrivateMessageUnknownRecipient(t *testing.T) {
	bench := newTestBench()

	session, conn := bench.connect(t, "u1")
	session.HandleAction(context.Background(), action(t, ActionSendPrivateMessage, PrivateMessagePayload{Recipient: "ghost", Content: "hello?"}))

	if conn.lastEvent(t, EventMessageError) == nil {
		t.Error("unknown recipient should produce message_error")
	}
	if len(bench.store.private) != 0 {
		t.Errorf("message to unknown recipient was persisted")
	}
}
