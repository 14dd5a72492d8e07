package domain

import "time"

// Verification credential limits.
const (
	OTPLength      = 6
	MaxOTPAttempts = 5
	OTPLifetime    = 10 * time.Minute
	ResetLifetime  = 1 * time.Hour
	// StaleAfter is how long any credential record is kept before the
	// janitor removes it regardless of state.
	StaleAfter = 24 * time.Hour
)

// VerificationCredential is one issued email-verification OTP.
// Only the bcrypt hash of the code is stored, never the plaintext.
// PK: credential_id (ULID, so lexicographic order is creation order);
// GSI: subject_id + credential_id for latest-per-subject queries.
// ExpiresAt and TTL are Unix seconds; TTL doubles as the DynamoDB TTL
// attribute backing up the janitor.
type VerificationCredential struct {
	CredentialID string    `json:"id" dynamodbav:"credential_id"`
	SubjectID    string    `json:"subject_id" dynamodbav:"subject_id"`
	SecretHash   string    `json:"-" dynamodbav:"secret_hash"`
	Attempts     int       `json:"attempts" dynamodbav:"attempts"`
	IsUsed       bool      `json:"is_used" dynamodbav:"is_used"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt    int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	TTL          int64     `json:"-" dynamodbav:"ttl"`                 // CreatedAt + StaleAfter, Unix seconds
}

// Expired reports whether the credential is past its expiry at the given time.
func (c *VerificationCredential) Expired(now time.Time) bool {
	return now.Unix() > c.ExpiresAt
}

// Locked reports whether the failed-attempt threshold has been reached.
func (c *VerificationCredential) Locked() bool {
	return c.Attempts >= MaxOTPAttempts
}

// ResetCredential is one issued password-reset token. The token itself is
// the partition key: it is 122-bit random and verified at most once, so it
// is stored raw and looked up by equality (unlike the OTP, which lives in a
// guessable 6-digit space and is therefore hashed).
type ResetCredential struct {
	Token     string     `json:"-" dynamodbav:"token"`
	UserID    string     `json:"user_id" dynamodbav:"user_id"`
	OriginIP  string     `json:"origin_ip" dynamodbav:"origin_ip"`
	UsedAt    *time.Time `json:"used_at,omitempty" dynamodbav:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	TTL       int64      `json:"-" dynamodbav:"ttl"`                 // CreatedAt + StaleAfter, Unix seconds
}

// Consumed reports whether the token has already been spent. Once UsedAt is
// set the credential is permanently inert regardless of expiry.
func (c *ResetCredential) Consumed() bool {
	return c.UsedAt != nil
}

// Expired reports whether the token is past its expiry at the given time.
func (c *ResetCredential) Expired(now time.Time) bool {
	return now.Unix() > c.ExpiresAt
}
