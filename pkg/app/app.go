// Package app 提供应用程序的初始化和配置功能.
package app

import (
	contextPkg "context"
	"fmt"
	"os"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/storage"
	nlog "github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/metrics"
)

// App 承载进程级资源：配置、存储管理器与注入完成的根上下文.
type App struct {
	Ctx     contextPkg.Context
	Manager *storage.Manager
	config  *configs.AppConfig
}

// NewApp 按固定顺序完成进程初始化：配置、监控、存储.
// 任何一步失败都直接退出，进程不应在存储未就绪时对外服务.
func NewApp(configPath string) *App {
	ctx := contextPkg.Background()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	nlog.Init()

	// 初始化监控
	config := configs.GetConfig()
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	ctx = context.WithStorageManager(ctx, manager)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics)
	}

	return &App{
		Ctx:     ctx,
		Manager: manager,
		config:  config,
	}
}

// Config 返回进程配置.
func (a *App) Config() *configs.AppConfig {
	return a.config
}

// Close 释放存储资源.
func (a *App) Close() error {
	if a.Manager != nil {
		return a.Manager.Close()
	}

	return nil
}
