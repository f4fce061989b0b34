package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// BlobConfig MinIO/S3 对象存储配置，保存原始资产文件与缩略图.
type BlobConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	ThumbPrefix     string `mapstructure:"thumb_prefix"`
	Region          string `mapstructure:"region"`
}

const (
	DefaultBlobEnabled         = false            // 默认不连接对象存储
	DefaultBlobEndpoint        = "localhost:9000" // 默认对象存储端点
	DefaultBlobAccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultBlobSecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultBlobUseSSL          = false            // 默认是否使用SSL
	DefaultBlobBucketName      = "photovault"     // 默认存储桶名称
	DefaultBlobThumbPrefix     = "thumbs"         // 默认缩略图对象前缀
	DefaultBlobRegion          = "us-east-1"      // 默认区域
)

// GetEndpointURL 获取完整的端点URL.
func (c *BlobConfig) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// setDefaults 设置对象存储配置的默认值.
func (c *BlobConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("blob.enabled", DefaultBlobEnabled)
	v.SetDefault("blob.endpoint", DefaultBlobEndpoint)
	v.SetDefault("blob.access_key_id", DefaultBlobAccessKeyID)
	v.SetDefault("blob.secret_access_key", DefaultBlobSecretAccessKey)
	v.SetDefault("blob.use_ssl", DefaultBlobUseSSL)
	v.SetDefault("blob.bucket_name", DefaultBlobBucketName)
	v.SetDefault("blob.thumb_prefix", DefaultBlobThumbPrefix)
	v.SetDefault("blob.region", DefaultBlobRegion)
}
