package config

import (
	"time"

	"github.com/spf13/viper"
)

type TicketStoreKind string

const (
	TicketStoreMemory TicketStoreKind = "memory"
	TicketStoreRedis  TicketStoreKind = "redis"
)

type TicketConfig interface {
	GetTicketStore() TicketStoreKind
	GetTicketTTL() time.Duration
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Tickets struct {
	v *viper.Viper
}

var _ TicketConfig = Tickets{}

func (t Tickets) GetTicketStore() TicketStoreKind {
	return TicketStoreKind(t.v.GetString("tickets.store"))
}

func (t Tickets) GetTicketTTL() time.Duration {
	return t.v.GetDuration("tickets.ttl")
}

func (t Tickets) GetRedisAddr() string {
	return t.v.GetString("tickets.redis.addr")
}

func (t Tickets) GetRedisPassword() string {
	return t.v.GetString("tickets.redis.password")
}

func (t Tickets) GetRedisDB() int {
	return t.v.GetInt("tickets.redis.db")
}

func (t Tickets) GetRedisKeyPrefix() string {
	return t.v.GetString("tickets.redis.key_prefix")
}
