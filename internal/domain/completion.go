package domain

// Message roles used when wrapping a free-form payload.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single chat message in an upstream completion payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
