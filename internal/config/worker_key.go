package config

type WorkerKeyStruct struct {
	// ExpiringSessions is a sorted set of in-progress session IDs scored by
	// their expires_at Unix timestamp.
	ExpiringSessions string
}

var WorkerKey = &WorkerKeyStruct{
	ExpiringSessions: "sessions:expiring",
}
