package service

import (
	"time"

	"pairchat/utils"
)

func nowFrom(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now().UTC()
	}
	return fn().UTC()
}

func idFrom(fn func() string) string {
	if fn == nil {
		return utils.GenerateUUID()
	}
	return fn()
}
