package engine

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tune a single generation call. A nil Temperature leaves the
// model default in place.
type ChatOptions struct {
	Temperature *float64
}

// Temperature returns ChatOptions with the given sampling temperature.
func Temperature(t float64) ChatOptions {
	return ChatOptions{Temperature: &t}
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
