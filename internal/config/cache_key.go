package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LoginSessionKey returns the key holding the active token ID of a user.
func (r *CacheKeyStruct) LoginSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// ExamDetailKey returns the cache key for an exam's participant-facing detail
// (questions and options, correct flags stripped).
func (r *CacheKeyStruct) ExamDetailKey(examID string) string {
	return fmt.Sprintf("exam:%s:detail", examID)
}

// ExamRevealedDetailKey returns the cache key for an exam's detail including
// correct flags and explanations, used by the result view.
func (r *CacheKeyStruct) ExamRevealedDetailKey(examID string) string {
	return fmt.Sprintf("exam:%s:detail:revealed", examID)
}

// SessionChannel returns the Redis PubSub channel carrying snapshots of a
// single exam session to every open workspace.
func (r *CacheKeyStruct) SessionChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:updates", sessionID)
}

var CacheKey = NewCacheKeyStruct()
