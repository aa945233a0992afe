package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ProfileTTL    = 10 * time.Minute
	PublicWallTTL = 60 * time.Second
)

func RateLimitKey(principal string) string {
	return fmt.Sprintf("ratelimit:%s", principal)
}

func ProfileKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("profile:%s", tenantID)
}

func PublicWallKey(slug string) string {
	return fmt.Sprintf("wall:public:%s", strings.ToLower(slug))
}

func LoginAttemptsKey(email string) string {
	return fmt.Sprintf("login:attempts:%s", strings.ToLower(email))
}
