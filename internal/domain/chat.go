package domain

// Role identifies who produced a ChatTurn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry of a summarization exchange. Turns are never mutated
// after they are appended to a History.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}
