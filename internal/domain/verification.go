package domain

// PendingCode is an unconsumed sign-in code for one email address.
// PK: email. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type PendingCode struct {
	Email     string `json:"email" dynamodbav:"email"`
	CodeHash  string `json:"-" dynamodbav:"code_hash"` // bcrypt of the 6-digit code
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the code is past its expiry at the given Unix time.
func (p *PendingCode) Expired(now int64) bool {
	return now > p.ExpiresAt
}

// DeliveryStatus records what happened to the email carrying a code.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed" // code stored, email not sent
)
