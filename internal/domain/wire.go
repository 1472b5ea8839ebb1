package domain

// ChatRequest is the body of POST /chat: the full transcript, oldest first.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// ChatResponse is the single object a completion stream carries.
type ChatResponse struct {
	Message   Message `json:"message"`
	ChatTitle string  `json:"chatTitle,omitempty"`
}

// ErrorResponse is the body returned with a status >= 400.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
