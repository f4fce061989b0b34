package configs

import (
	"github.com/spf13/viper"
)

// DocStoreConfig 文档型后端引擎配置.
type DocStoreConfig struct {
	Type  string              `mapstructure:"type"  rule:"oneof=memory redis nats"`
	Redis RedisDocStoreConfig `mapstructure:"redis"`
	NATS  NATSDocStoreConfig  `mapstructure:"nats"`
}

// RedisDocStoreConfig Redis 文档引擎配置.
type RedisDocStoreConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

// NATSDocStoreConfig NATS KV 文档引擎配置.
type NATSDocStoreConfig struct {
	URL      string `mapstructure:"url"      rule:"hostname_port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Bucket   string `mapstructure:"bucket"   rule:"required"`
}

// GetDocStoreType 返回当前配置的文档引擎类型.
func (c *DocStoreConfig) GetDocStoreType() string {
	return c.Type
}

// setDefaults 设置文档存储配置的默认值.
func (c *DocStoreConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("docstore.type", "memory")

	// Redis 默认值
	v.SetDefault("docstore.redis.addr", "localhost:6379")
	v.SetDefault("docstore.redis.password", "")
	v.SetDefault("docstore.redis.db", 0)

	// NATS 默认值
	v.SetDefault("docstore.nats.url", "localhost:4222")
	v.SetDefault("docstore.nats.user", "")
	v.SetDefault("docstore.nats.password", "")
	v.SetDefault("docstore.nats.bucket", "photovault-catalog")
}
