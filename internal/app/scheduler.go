package app

import (
	"fmt"
	"time"
)

// nextReset 计算 HH:MM 格式的本地重置时刻在 now 之后的下一次出现。
func nextReset(now time.Time, resetTime string) (time.Time, error) {
	parsed, err := time.Parse("15:04", resetTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("app: 重置时间 %q 不是 HH:MM 格式: %w", resetTime, err)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next, nil
}
