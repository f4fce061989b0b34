// Package storage 聚合资产仓库与对象存储客户端，进程内只初始化一次.
//
// Example:
//
// 初始化
//
//	 ctx := context.Background()
//	 mgr, err := storage.Init(ctx)
//
//		if err != nil {
//		    // 处理错误
//		}
//
// 获取存储客户端
//
//	repo := mgr.GetRepository()
//	blobClient := mgr.GetBlobClient()
package storage

import (
	"context"
	"sync"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/repository"
	blobc "github.com/yeisme/photovault/pkg/internal/storage/blob"
	nlog "github.com/yeisme/photovault/pkg/log"

	// 注册两个仓库后端工厂
	_ "github.com/yeisme/photovault/pkg/internal/repository/document"
	_ "github.com/yeisme/photovault/pkg/internal/repository/relational"
)

// Manager 聚合所有存储资源.
type Manager struct {
	Repo repository.AssetRepository
	Blob *blobc.Client
}

var (
	mgr     *Manager
	mgrOnce sync.Once
)

// Init 初始化默认存储，使用全局配置. 重复调用只返回已初始化实例.
// 仓库后端由配置决定一次，初始化失败时进程不应继续对外提供查询.
func Init(ctx context.Context) (*Manager, error) {
	var err error

	mgrOnce.Do(func() {
		m := &Manager{}

		if repo, e := repository.New(ctx); e != nil {
			err = e

			return
		} else {
			m.Repo = repo
		}

		// 对象存储是可选的协作方，未启用时仓库查询照常服务
		if configs.GetConfig().Blob.Enabled {
			if bc, e := blobc.New(ctx); e != nil {
				err = e

				return
			} else {
				m.Blob = bc
			}
		}

		mgr = m

		nlog.Logger().Info().Msg("storage manager initialized")
	})

	return mgr, err
}

// GetRepository 获取资产仓库.
func (m *Manager) GetRepository() repository.AssetRepository {
	return m.Repo
}

// GetBlobClient 获取对象存储客户端.
func (m *Manager) GetBlobClient() *blobc.Client {
	return m.Blob
}

// Close 依次释放存储资源.
func (m *Manager) Close() error {
	var firstErr error

	if m.Repo != nil {
		if err := m.Repo.Close(); err != nil {
			firstErr = err
		}
	}

	if m.Blob != nil {
		if err := m.Blob.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
