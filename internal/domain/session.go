package domain

// Session is the record behind an issued bearer token.
// PK: token. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Session struct {
	Token     string `json:"-" dynamodbav:"token"`
	Email     string `json:"email" dynamodbav:"email"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given Unix time.
func (s *Session) Expired(now int64) bool {
	return now > s.ExpiresAt
}
