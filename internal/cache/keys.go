package cache

// Cache keys are entity-type-prefixed so families never collide in the
// shared mirror.

func UserKey(id string) string {
	return "user:" + id
}

// VerificationKey is keyed by the owning user, not the code row: the
// lifecycle only ever cares about "the current code for this user".
func VerificationKey(userID string) string {
	return "verification:" + userID
}
