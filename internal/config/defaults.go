package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("app_name", "OAuth Front End")
	v.SetDefault("env", "DEV")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("realm", "authfront")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("cors.allowed_origins", []string{})

	v.SetDefault("backend.kind", string(BackendLocal))
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.authlete.base_url", "https://api.authlete.com")
	v.SetDefault("backend.authlete.service_id", "")
	v.SetDefault("backend.authlete.access_token", "")

	v.SetDefault("tickets.store", string(TicketStoreMemory))
	v.SetDefault("tickets.ttl", 10*time.Minute)
	v.SetDefault("tickets.redis.addr", "localhost:6379")
	v.SetDefault("tickets.redis.password", "")
	v.SetDefault("tickets.redis.db", 0)
	v.SetDefault("tickets.redis.key_prefix", "authfront:")

	v.SetDefault("store.users_file", "")
	v.SetDefault("store.resource_servers_file", "")

	v.SetDefault("engine.code_ttl", 10*time.Minute)
	v.SetDefault("engine.access_token_ttl", time.Hour)
	v.SetDefault("engine.id_token_ttl", time.Hour)
	v.SetDefault("engine.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("engine.par_ttl", 10*time.Minute)
	v.SetDefault("engine.clients_file", "")
}
