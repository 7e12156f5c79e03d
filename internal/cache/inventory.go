package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	UserPostsKeyPrefix   = "user:%d:posts"
	TokenBlacklistPrefix = "blacklist:%s"
	SessionKeyPrefix     = "session:"
	CSRFKeyPrefix        = "csrf:"
	LimiterKeyPrefix     = "limiter:"
	GenerationKeyPrefix  = "gen:"
)

const (
	UserTTL      = 5 * time.Minute
	UserPostsTTL = 2 * time.Minute
	// GenerationTTL outlives any fill, so a reader never sees a bumped
	// generation expire back to its starting value.
	GenerationTTL = time.Hour
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func UserPostsKey(userID uint) string {
	return fmt.Sprintf(UserPostsKeyPrefix, userID)
}

func TokenBlacklistKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistPrefix, jti)
}
