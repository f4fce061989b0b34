package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultReloadConfig     = true          // 是否启用配置热重载
	DefaultDebug            = false         // 是否启用调试模式
	DefaultHeartbeatCron    = "*/5 * * * *" // 文档引擎保活心跳 cron 表达式
	DefaultIndexCheckCron   = "30 3 * * *"  // 每日索引版本检查 cron 表达式
	DefaultReindexWorkers   = 4             // 重建索引的并发工作协程数
	DefaultFetchLimit       = 200           // 批量导出每页资产数
	DefaultOperationTimeout = 30            // 仓库操作超时时间，单位秒
)

type (
	// AppSectionConfig 进程级配置.
	AppSectionConfig struct {
		ReloadConfig     bool   `mapstructure:"reload_config"`
		Debug            bool   `mapstructure:"debug"`
		HeartbeatCron    string `mapstructure:"heartbeat_cron"`
		IndexCheckCron   string `mapstructure:"index_check_cron"`
		ReindexWorkers   int    `mapstructure:"reindex_workers"   rule:"min=1,max=64"`
		FetchLimit       int    `mapstructure:"fetch_limit"       rule:"min=1,max=1000"`
		OperationTimeout int    `mapstructure:"operation_timeout" rule:"min=1,max=300"`
	}
)

// GetOperationTimeout 返回仓库操作超时时间作为 time.Duration.
func (s *AppSectionConfig) GetOperationTimeout() time.Duration {
	return time.Duration(s.OperationTimeout) * time.Second
}

// setDefaults 设置进程级配置的默认值.
func (s *AppSectionConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("app.reload_config", DefaultReloadConfig)
	v.SetDefault("app.debug", DefaultDebug)
	v.SetDefault("app.heartbeat_cron", DefaultHeartbeatCron)
	v.SetDefault("app.index_check_cron", DefaultIndexCheckCron)
	v.SetDefault("app.reindex_workers", DefaultReindexWorkers)
	v.SetDefault("app.fetch_limit", DefaultFetchLimit)
	v.SetDefault("app.operation_timeout", DefaultOperationTimeout)
}
