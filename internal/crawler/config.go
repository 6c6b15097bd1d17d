package crawler

import "time"

// Config bounds a Site Crawler's politeness and resource limits.
type Config struct {
	UserAgent string `env:"CRAWL_USER_AGENT" envDefault:"Mozilla/5.0 (compatible; sitevane-indexer/1.0; +https://sitevane.net)"`

	// MaxConcurrency bounds in-flight requests per domain.
	MaxConcurrency int `env:"CRAWL_MAX_CONCURRENCY" envDefault:"4"`

	// RequestDelay is the minimum gap between successive request starts to
	// the same domain.
	RequestDelay time.Duration `env:"CRAWL_REQUEST_DELAY" envDefault:"2s"`

	// WallClockCap is the hard cap on one site crawl's total duration
	// ("total wall-clock cap (e.g. 30 min)").
	WallClockCap time.Duration `env:"CRAWL_WALL_CLOCK_CAP" envDefault:"30m"`

	// MaxResponseSize bounds how much of a single response body is read
	// ("max response size (e.g. 1 MiB)").
	MaxResponseSize int64 `env:"CRAWL_MAX_RESPONSE_SIZE" envDefault:"1048576"`

	// ConnectTimeout and ReadTimeout bound a single fetch (
	// "connect/read timeout (e.g. 30s)").
	ConnectTimeout time.Duration `env:"CRAWL_CONNECT_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"CRAWL_READ_TIMEOUT" envDefault:"30s"`

	// MaxRetries bounds retries on a transient per-page fetch failure
	MaxRetries int `env:"CRAWL_MAX_RETRIES" envDefault:"2"`

	// RobotsCacheTTL bounds how long a fetched robots.txt stays cached.
	RobotsCacheTTL time.Duration `env:"CRAWL_ROBOTS_CACHE_TTL" envDefault:"24h"`
}

// extensionBlacklist is the fixed set of non-content file extensions the
// crawler never follows, regardless of site-specific filters.
var extensionBlacklist = []string{
	".pdf", ".zip", ".exe", ".dmg", ".mp3", ".mp4", ".avi", ".mov", ".webm",
	".rar", ".tar", ".gz", ".7z", ".iso", ".apk", ".deb", ".rpm",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp",
	".css", ".js", ".woff", ".woff2", ".ttf", ".eot", ".map",
	".json", ".csv", ".xls", ".xlsx",
	".doc", ".docx", ".ppt", ".pptx", ".odt", ".ods", ".odp",
}
