package dynamo

// DynamoDB attribute names used as keys and TTL attributes.
const (
	fieldEmail     = "email"
	fieldToken     = "token"
	fieldCodeHash  = "code_hash"
	fieldExpiresAt = "expires_at"
)
