package configs

import "github.com/spf13/viper"

// RepoBackend 资产仓库后端类型.
type RepoBackend string

const (
	// BackendDocument 文档型后端：每个资产一份 JSON 文档，二级索引由应用维护.
	BackendDocument RepoBackend = "document"
	// BackendRelational 关系型后端：单宽表 + 视图，嵌入式数据库.
	BackendRelational RepoBackend = "relational"
)

// RepoConfig 仓库后端选择，进程启动时确定一次，不支持按请求切换.
type RepoConfig struct {
	Backend RepoBackend `mapstructure:"backend" rule:"oneof=document relational"`
}

// setDefaults 设置仓库配置的默认值.
func (c *RepoConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("repo.backend", BackendRelational)
}
