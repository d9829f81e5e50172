package event

import "time"

// Context carries routing metadata alongside an event payload so listeners
// can filter without inspecting the payload type.
type Context struct {
	EventType  string `json:"eventType"`
	SessionKey string `json:"sessionKey,omitempty"`
	Surface    string `json:"surface,omitempty"`
	Tool       string `json:"tool,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
