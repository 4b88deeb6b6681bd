// jotlet/config/config.go
package config

import "time"

const (
	AppVersion = "0.9.0"

	// Live channel
	PresenceTTL      = 7200 * time.Second
	GroupPrefix      = "board-"
	SocketWriteWait  = 5 * time.Second
	SocketPongWait   = 60 * time.Second
	SocketOutboxSize = 64

	// Boards
	SlugLength          = 8
	MaxSlugAttempts     = 5
	MaxBoardTitleLen    = 50
	MaxBoardDescLen     = 100
	MaxTopicSubjectLen  = 400
	MaxPostContentLen   = 1000
	DefaultBgColor      = "#ffffff"
	SessionCookieName   = "jotlet_session"
	SessionCookieMaxAge = 365 * 24 * time.Hour

	// Image uploads
	MaxPostImageFileSize = 2 * 1024 * 1024 // 2MB
	MaxPostImageCount    = 100
	MaxPostImageWidth    = 400
	MaxPostImageHeight   = 400
	MaxBackgroundWidth   = 3840
	MaxBackgroundSize    = 15 * 1024 * 1024

	// Rate Limiting Defaults
	DefaultRateLimitEvery  = "10s"
	DefaultRateLimitBurst  = 5
	DefaultRateLimitPrune  = "1h"
	DefaultRateLimitExpire = "24h"
)
