// Package s3publish uploads result folders to S3 or an S3-compatible store
// such as MinIO or Cloudflare R2.
package s3publish

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"github.com/rxtech-lab/argo-range-backtest/pkg/publish"
	"go.uber.org/zap"
)

// ClientConfig holds the connection settings of the object store.
type ClientConfig struct {
	// Endpoint is the S3-compatible endpoint URL. Leave empty for AWS S3.
	Endpoint string
	Region   string
	Bucket   string
	// Prefix is prepended to every object key.
	Prefix string
	// AccessKey and SecretKey are optional; the default AWS credential chain is used when empty.
	AccessKey string
	SecretKey string
	// ForcePathStyle puts the bucket in the path rather than the host name.
	ForcePathStyle bool
}

// Publisher uploads the files of a result folder under <prefix>/<run id>/.
type Publisher struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *logger.Logger
}

var _ publish.Publisher = (*Publisher)(nil)

// New creates a Publisher from cfg.
func New(ctx context.Context, cfg ClientConfig, log *logger.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "s3 bucket name is required")
	}

	if cfg.Region == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "s3 region is required")
	}

	options := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePublishFailed, "failed to load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint))
		}

		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewWithClient(client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewWithClient creates a Publisher on top of an existing client.
func NewWithClient(client manager.UploadAPIClient, bucket string, prefix string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Publisher{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		logger:   log,
	}
}

// ObjectKey returns the key a result file of the run is stored under.
func (p *Publisher) ObjectKey(runID string, name string) string {
	return path.Join(p.prefix, runID, name)
}

// Publish implements publish.Publisher.
func (p *Publisher) Publish(ctx context.Context, folder string, report types.Report) error {
	for _, file := range publish.ResultFiles(folder) {
		if err := p.upload(ctx, report.ID, file); err != nil {
			return err
		}
	}

	return nil
}

func (p *Publisher) upload(ctx context.Context, runID string, file publish.ResultFile) error {
	body, err := os.Open(file.Path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodePublishFailed, err, "failed to open %s", file.Path)
	}
	defer body.Close()

	key := p.ObjectKey(runID, file.Name)

	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(file.ContentType),
	})
	if err != nil {
		return errors.Wrapf(errors.ErrCodePublishFailed, err, "failed to upload %s", key)
	}

	p.logger.Debug("Uploaded result file", zap.String("bucket", p.bucket), zap.String("key", key))

	return nil
}

// Close implements publish.Publisher. The S3 client holds no connections to release.
func (p *Publisher) Close() error {
	return nil
}

// normaliseEndpoint adds an https scheme to endpoints given as a bare host.
func normaliseEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}

	return "https://" + endpoint
}
