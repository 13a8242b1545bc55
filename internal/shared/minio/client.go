// Package objstore MinIO 对象存储：导出报表归档
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"campus-access/pkg/logging"
)

// ReportPrefix 报表对象前缀
const ReportPrefix = "reports/"

// Config MinIO 配置
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled 是否配置了对象存储
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// Client 报表归档客户端
type Client struct {
	mc     *minio.Client
	bucket string
	log    *logging.Logger
}

// ObjectInfo 归档对象摘要
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// NewClient 创建 MinIO 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "campus-access"
	}
	return &Client{mc: mc, bucket: bucket, log: logging.Default("minio")}, nil
}

// EnsureBucket 确保 bucket 存在
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		c.log.Info("Created bucket", "bucket", c.bucket)
	}
	return nil
}

// ReportKey 报表文件名对应的对象键
func ReportKey(filename string) string {
	return ReportPrefix + path.Base(filename)
}

// PutReport 归档一份 CSV 报表，返回对象键
func (c *Client) PutReport(ctx context.Context, filename string, data []byte) (string, error) {
	key := ReportKey(filename)
	_, err := c.mc.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/csv; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	c.log.Info("Report archived", "key", key, "size", len(data))
	return key, nil
}

// GetReport 读取归档报表
func (c *Client) GetReport(ctx context.Context, filename string) ([]byte, error) {
	key := ReportKey(filename)
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// ListReports 按时间倒序列出归档报表
func (c *Client) ListReports(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: ReportPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list reports: %w", obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

// Exists 检查报表是否已归档
func (c *Client) Exists(ctx context.Context, filename string) (bool, error) {
	_, err := c.mc.StatObject(ctx, c.bucket, ReportKey(filename), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
