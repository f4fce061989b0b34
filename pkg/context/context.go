// Package context 拓展上下文功能，将存储管理器等集成到上下文中，方便在应用程序各处传递和使用.
package context

import (
	"context"

	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/storage"
	blobc "github.com/yeisme/photovault/pkg/internal/storage/blob"
)

type ContextKey string

const (
	StorageManagerKey ContextKey = "storageManager"
)

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, StorageManagerKey, mgr)
}

// GetManager 从 context 中获取 Manager.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(StorageManagerKey).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

// GetRepository 从 context 中获取资产仓库.
func GetRepository(ctx context.Context) repository.AssetRepository {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetRepository()
	}

	return nil
}

// GetBlobClient 从 context 中获取对象存储客户端.
func GetBlobClient(ctx context.Context) *blobc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetBlobClient()
	}

	return nil
}
