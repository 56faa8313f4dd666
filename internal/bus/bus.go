package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind 表示一次生命周期迁移的类别。
type Kind string

const (
	KindProposed    Kind = "intent.proposed"
	KindApproved    Kind = "intent.approved"
	KindDisapproved Kind = "intent.disapproved"
	KindExecuted    Kind = "intent.executed"
	KindConfirmed   Kind = "intent.confirmed"
	KindExpired     Kind = "intent.expired"
)

// Event 描述一次意图生命周期迁移，投递给链下订阅方。
type Event struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	Account    string `json:"account"`
	IntentKey  string `json:"intent_key"`
	OccurredAt int64  `json:"occurred_at"`
}

// NewEvent 构造一条带唯一标识的事件。
func NewEvent(kind Kind, accountAddr, intentKey string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Account:    accountAddr,
		IntentKey:  intentKey,
		OccurredAt: time.Now().UnixMilli(),
	}
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}

func decodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Handler 处理一条生命周期事件。
type Handler func(ctx context.Context, event Event) error

// Publisher 负责向总线投递事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Subscriber 负责从总线消费事件。
type Subscriber interface {
	Subscribe(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Bus 同时具备发布与订阅能力。
type Bus interface {
	Publisher
	Subscriber
}
