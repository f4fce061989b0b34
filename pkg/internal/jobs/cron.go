// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"

	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/internal/storage"
	"github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 周期仓库保活探测，防止文档引擎的空闲连接被回收
//   - 每日目录体检，确认各分组计数查询可正常服务并输出概览
//
// cron 表达式取自配置，缺省为每 5 分钟保活、每天 03:30 体检.
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	cfg := configs.GetConfig().App

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	_ = sched.AddCron(JobRepoHeartbeat, cfg.HeartbeatCron, func(ctx context.Context) {
		runHeartbeat(ctx, mgr)
	}, baseCtx)

	_ = sched.AddCron(JobIndexCheck, cfg.IndexCheckCron, func(ctx context.Context) {
		runIndexCheck(ctx)
	}, baseCtx)

	return nil
}

// runHeartbeat 轻量空操作查询，保持仓库连接活跃. 失败只记录，下个周期自然重试.
func runHeartbeat(ctx context.Context, mgr *storage.Manager) {
	l := log.Logger().With().Str("job", JobRepoHeartbeat).Logger()

	opCtx, cancel := context.WithTimeout(ctx, configs.GetConfig().App.GetOperationTimeout())
	defer cancel()

	if err := mgr.GetRepository().Ping(opCtx); err != nil {
		l.Error().Err(err).Msg("repository heartbeat failed")
		return
	}

	l.Debug().Msg("repository heartbeat ok")
}

// runIndexCheck 每日目录体检：跑一遍概览统计确认索引/视图可服务，输出总量日志.
func runIndexCheck(ctx context.Context) {
	l := log.Logger().With().Str("job", JobIndexCheck).Logger()

	opCtx, cancel := context.WithTimeout(ctx, configs.GetConfig().App.GetOperationTimeout())
	defer cancel()

	svc := service.NewCatalogService(ctx)

	stats, err := svc.Stats(opCtx)
	if err != nil {
		l.Error().Err(err).Msg("catalog index check failed")
		return
	}

	l.Info().
		Int64("assets", stats.TotalAssets).
		Int("tags", len(stats.Tags)).
		Int("locations", len(stats.Locations)).
		Int("years", len(stats.Years)).
		Int("media_types", len(stats.MediaTypes)).
		Msg("catalog index check complete")
}
