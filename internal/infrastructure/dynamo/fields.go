package dynamo

// DynamoDB attribute names used in update and condition expressions across
// all repos. Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldAttempts     = "attempts"
	fieldTTL          = "ttl"
	fieldSubjectID    = "subject_id"
	fieldCredentialID = "credential_id"
	fieldLatestCredID = "latest_credential_id"
	fieldToken        = "token"
	fieldUserID       = "user_id"
	fieldSessionID    = "session_id"
	fieldEmail        = "email"
	fieldStatus       = "status"
	fieldEnable       = "enable"
	fieldUpdatedAt    = "updated_at"
)
