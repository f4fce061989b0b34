// Package blob 处理原始资产文件与缩略图的对象存储操作.
// 资产标识符即对象寻址键：解码后得到桶内相对路径，缩略图按尺寸前缀存放.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/photovault/pkg/log"
)

const (
	// presignExpiry 预签名下载链接有效期.
	presignExpiry = 15 * time.Minute

	// urlCacheTTL 链接缓存时间，须短于链接有效期.
	urlCacheTTL = 10 * time.Minute
)

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client

	bucket      string
	thumbPrefix string

	// urls 缓存预签名链接，避免重复签名.
	urls *cache.Cache
}

// New 初始化 MinIO 客户端，若 bucket 不存在则尝试创建.
func New(ctx context.Context) (*Client, error) {
	cfg := configs.GetConfig().Blob
	endpoint := cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("photovault", configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}

		nlog.Logger().Info().Str("bucket", cfg.BucketName).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("blob store connected")

	urlStore, err := kv.NewMemoryStore(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create url cache: %w", err)
	}

	return &Client{
		Client:      cli,
		bucket:      cfg.BucketName,
		thumbPrefix: cfg.ThumbPrefix,
		urls:        cache.NewCache(urlStore),
	}, nil
}

// objectName 资产标识符解码为桶内相对路径.
func (c *Client) objectName(key string) (string, error) {
	rel, err := model.DecodeKey(key)
	if err != nil {
		return "", fmt.Errorf("decode asset key %s: %w", key, err)
	}

	return rel, nil
}

// AssetURL 返回原始文件的预签名下载链接，命中缓存直接返回.
func (c *Client) AssetURL(ctx context.Context, key string) (string, error) {
	name, err := c.objectName(key)
	if err != nil {
		return "", err
	}

	return cache.GetOrSet(ctx, c.urls, "url:asset:"+key, func() (string, error) {
		u, err := c.PresignedGetObject(ctx, c.bucket, name, presignExpiry, nil)
		if err != nil {
			return "", fmt.Errorf("presign asset %s: %w", key, err)
		}

		return u.String(), nil
	}, urlCacheTTL)
}

// ThumbnailURL 返回指定尺寸缩略图的预签名下载链接，命中缓存直接返回.
func (c *Client) ThumbnailURL(ctx context.Context, key string, width, height int) (string, error) {
	name, err := c.objectName(key)
	if err != nil {
		return "", err
	}

	size := fmt.Sprintf("%dx%d", width, height)

	return cache.GetOrSet(ctx, c.urls, "url:thumb:"+size+":"+key, func() (string, error) {
		thumb := path.Join(c.thumbPrefix, size, name)

		u, err := c.PresignedGetObject(ctx, c.bucket, thumb, presignExpiry, nil)
		if err != nil {
			return "", fmt.Errorf("presign thumbnail %s: %w", key, err)
		}

		return u.String(), nil
	}, urlCacheTTL)
}

// StoreBlob 将本地临时文件上传为资产对象.
func (c *Client) StoreBlob(ctx context.Context, tempPath string, asset *model.Asset) error {
	name, err := c.objectName(asset.Key)
	if err != nil {
		return err
	}

	_, err = c.FPutObject(ctx, c.bucket, name, tempPath, minio.PutObjectOptions{
		ContentType: asset.MediaType,
	})
	if err != nil {
		return fmt.Errorf("store blob %s: %w", asset.Key, err)
	}

	return nil
}

// HealthCheck 简单的健康检查，通过列出桶来验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListBuckets(ctx)
	return err
}

// Close 关闭客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}
