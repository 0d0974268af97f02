package domain

// MagicLink maps the sha256 digest of an emailed login token to the email it
// was issued for. The raw token is never persisted.
// PK: digest. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type MagicLink struct {
	Digest    string `json:"digest" dynamodbav:"digest"`
	Email     string `json:"email" dynamodbav:"email"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
