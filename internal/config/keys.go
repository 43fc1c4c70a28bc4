package config

import (
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	def     func() any
	extract func(cfg Config) any
}

func constant(v any) func() any { return func() any { return v } }

var specs = []keySpec{
	{
		key: "relay.url", typ: kString, env: "CROWTREASURE_RELAY_URL",
		def:     constant("http://127.0.0.1:8787/v1/chat/completions"),
		extract: func(cfg Config) any { return cfg.Relay.URL },
	},
	{
		key: "relay.backend", typ: kString, env: "CROWTREASURE_RELAY_BACKEND",
		def:     constant("relay"),
		extract: func(cfg Config) any { return cfg.Relay.Backend },
	},
	{
		key: "relay.model", typ: kString, env: "CROWTREASURE_RELAY_MODEL",
		def:     constant("deepseek-chat"),
		extract: func(cfg Config) any { return cfg.Relay.Model },
	},
	{
		key: "relay.temperature", typ: kFloat, env: "CROWTREASURE_RELAY_TEMPERATURE",
		def:     constant(0.8),
		extract: func(cfg Config) any { return cfg.Relay.Temperature },
	},
	{
		key: "relay.timeout", typ: kDuration, env: "CROWTREASURE_RELAY_TIMEOUT",
		def:     constant(time.Duration(0)),
		extract: func(cfg Config) any { return cfg.Relay.Timeout },
	},
	{
		key: "relay.token", typ: kString, env: "CROWTREASURE_RELAY_TOKEN",
		secret:  true,
		def:     constant(""),
		extract: func(cfg Config) any { return cfg.Relay.Token },
	},
	{
		key: "server.host", typ: kString, env: "CROWTREASURE_SERVER_HOST",
		def:     constant("127.0.0.1"),
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "CROWTREASURE_SERVER_PORT",
		def:     constant(8787),
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "upstream.base_url", typ: kString, env: "CROWTREASURE_UPSTREAM_BASE_URL",
		def:     constant("https://api.deepseek.com/v1"),
		extract: func(cfg Config) any { return cfg.Upstream.BaseURL },
	},
	{
		key: "upstream.api_key", typ: kString, env: "DEEPSEEK_API_KEY",
		secret:  true,
		def:     constant(""),
		extract: func(cfg Config) any { return cfg.Upstream.APIKey },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CROWTREASURE_STORAGE_DATA_DIR",
		def:     func() any { return defaultDataDir() },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "draw.delay", typ: kDuration, env: "CROWTREASURE_DRAW_DELAY",
		def:     constant(3 * time.Second),
		extract: func(cfg Config) any { return cfg.Draw.Delay },
	},
	{
		key: "log.level", typ: kString, env: "CROWTREASURE_LOG_LEVEL",
		def:     constant("info"),
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "CROWTREASURE_LOG_FILE",
		def:     constant(""),
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}
