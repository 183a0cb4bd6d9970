package realtime

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestClient(spaceID uuid.UUID) *Client {
	return &Client{
		ID:      uuid.New().String(),
		SpaceID: spaceID,
		UserID:  uuid.New(),
		send:    make(chan WSMessage, 8),
	}
}

func TestBroadcastDeliversToSpaceClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	spaceID := uuid.New()

	c := newTestClient(spaceID)
	hub.Register(c)
	other := newTestClient(uuid.New())
	hub.Register(other)

	if err := hub.Broadcast(spaceID, EventRequestCreated, map[string]string{"focus": "footwork"}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	select {
	case msg := <-c.send:
		if msg.Event != EventRequestCreated {
			t.Errorf("event = %q, want %q", msg.Event, EventRequestCreated)
		}
	default:
		t.Fatal("no message delivered to space client")
	}
	select {
	case <-other.send:
		t.Fatal("message delivered to a client on a different space")
	default:
	}
}

func TestBroadcastDuringMembershipChurn(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	spaceID := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			c := newTestClient(spaceID)
			hub.Register(c)
			hub.Unregister(c)
		}
	}()
	for i := 0; i < 500; i++ {
		if err := hub.Broadcast(spaceID, EventRequestClaimed, map[string]int{"i": i}); err != nil {
			t.Fatalf("Broadcast: %v", err)
		}
	}
	<-done

	if got := hub.ConnectedCount(spaceID); got != 0 {
		t.Errorf("ConnectedCount = %d after churn, want 0", got)
	}
}
