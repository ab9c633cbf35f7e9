// Package events publishes challenge lifecycle notifications to other services.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event types.
const (
	TypeUserChallengeJoined  = "user_challenge.joined"
	TypeUserChallengeSettled = "user_challenge.settled"
	TypeRewardRedeemed       = "reward.redeemed"
)

// Event is the JSON body of a published message.
type Event struct {
	Type            string    `json:"type"`
	UserID          string    `json:"user_id"`
	ChallengeID     string    `json:"challenge_id,omitempty"`
	UserChallengeID string    `json:"user_challenge_id,omitempty"`
	RewardID        string    `json:"reward_id,omitempty"`
	Status          string    `json:"status,omitempty"`
	Points          int64     `json:"points,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events after the state change they describe has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
