// Package configs 管理应用程序配置，包括仓库后端、数据库、文档存储和对象存储的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	import "path/to/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Repo.Backend)
//
// Example accessing DB config:
//
//	config := configs.GetConfig()
//	dbConfig := config.DB
//	dsn := dbConfig.GetDSN()
//	fmt.Println("DSN:", dsn)
//
// Example accessing blob store config:
//
//	config := configs.GetConfig()
//	blobConfig := config.Blob
//	endpoint := blobConfig.GetEndpointURL()
//	fmt.Println("Blob Endpoint:", endpoint)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppVersion 应用版本号.
const AppVersion = "0.3.0"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Repo     RepoConfig           `mapstructure:"repo"`            // RepoConfig 资产仓库后端选择
		DB       DBConfig             `mapstructure:"db"`              // DBConfig 关系型后端数据库配置
		DocStore DocStoreConfig       `mapstructure:"docstore"`        // DocStoreConfig 文档型后端引擎配置
		Blob     BlobConfig           `mapstructure:"blob"`            // BlobConfig 对象存储（原始文件与缩略图）配置
		App      AppSectionConfig     `mapstructure:"app"`             // AppSectionConfig 进程级配置
		Log      LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		Metrics  MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 监控配置
		Breaker  CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig 文档引擎熔断配置
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
func InitConfig(path string) error {
	appViper = viper.New()
	// 设置默认值
	setAllDefaults(appViper)

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		appViper.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		appViper.SetConfigName("config")
		appViper.AddConfigPath(path)
		appViper.AddConfigPath(path + "/configs")

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				appViper.SetConfigFile(cfg)

				break
			}
		}
	}

	appViper.AutomaticEnv()
	appViper.SetEnvPrefix("PHOTOVAULT")

	// 读取配置；找不到配置文件时退回默认值 + 环境变量
	if err := appViper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 解析到全局配置
	if err := appViper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	reloadConfigs(appViper, globalConfig.App.ReloadConfig)

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var repoConfig RepoConfig

	var dbConfig DBConfig

	var docStoreConfig DocStoreConfig

	var blobConfig BlobConfig

	var appConfig AppSectionConfig

	var logConfig LogConfig

	var metricsConfig MetricsConfig

	var breakerConfig CircuitBreakerConfig

	repoConfig.setDefaults(v)
	dbConfig.setDefaults(v)
	docStoreConfig.setDefaults(v)
	blobConfig.setDefaults(v)
	appConfig.setDefaults(v)
	logConfig.setDefaults(v)
	metricsConfig.setDefaults(v)
	breakerConfig.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		fmt.Println("Reloading configuration...")

		if err := v.Unmarshal(&globalConfig); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
		}
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

func GetViper() *viper.Viper {
	return appViper
}
