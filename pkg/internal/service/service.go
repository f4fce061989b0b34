// Package service 实现查询编排：按给定条件挑选仓库调用、在内存中取交集、排序并分页.
// 服务层只依赖仓库的抽象契约，对两个后端一视同仁.
package service

import (
	"context"

	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/repository"
	blobc "github.com/yeisme/photovault/pkg/internal/storage/blob"
)

// CatalogService 资产目录查询与维护服务.
type CatalogService struct {
	repo repository.AssetRepository
	blob *blobc.Client
}

func NewCatalogService(c context.Context) *CatalogService {
	return &CatalogService{
		repo: ctxPkg.GetRepository(c),
		blob: ctxPkg.GetBlobClient(c),
	}
}
