package archive

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	return nil
}

// S3Client writes audit records to a Hive-partitioned Lode dataset backed
// by S3. source/category are fixed per instance; day/run_id vary per
// WriteRecord call.
type S3Client struct {
	dataset  lode.Dataset
	source   string
	category string
}

// NewS3Client creates a Client backed by S3 via the AWS SDK default
// credential chain (env vars, shared config, IAM role).
func NewS3Client(ctx context.Context, datasetID, source, category string, s3cfg S3Config) (*S3Client, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	sdkCfg, err := loadAWSConfig(ctx, s3cfg.Region)
	if err != nil {
		return nil, err
	}

	bucket := newBucketStoreFactory(sdkCfg, s3cfg)

	ds, err := lode.NewDataset(
		lode.DatasetID(datasetID),
		bucket,
		lode.WithHiveLayout("source", "category", "day", "run_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, fmt.Errorf("create lode dataset %q: %w", datasetID, err)
	}

	return &S3Client{dataset: ds, source: source, category: category}, nil
}

// loadAWSConfig resolves credentials through the default SDK chain,
// pinning the region when one is configured.
func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var overrides []func(*config.LoadOptions) error
	if region != "" {
		overrides = append(overrides, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, overrides...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS credentials: %w", err)
	}
	return cfg, nil
}

// newBucketStoreFactory builds the lode.StoreFactory closure that opens
// the S3-backed store on first write, applying the endpoint/path-style
// overrides an S3-compatible provider (R2, MinIO) may need.
func newBucketStoreFactory(sdkCfg aws.Config, s3cfg S3Config) lode.StoreFactory {
	var overrides []func(*s3.Options)
	if s3cfg.Endpoint != "" {
		endpoint := s3cfg.Endpoint
		overrides = append(overrides, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if s3cfg.UsePathStyle {
		overrides = append(overrides, func(o *s3.Options) { o.UsePathStyle = true })
	}

	client := s3.NewFromConfig(sdkCfg, overrides...)
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{Bucket: s3cfg.Bucket, Prefix: s3cfg.Prefix})
	}
}

// WriteRecord writes one audit record into its Hive partition. The record
// is msgpack round-tripped into a map first, matching the dataset's
// map[string]any write contract.
func (c *S3Client) WriteRecord(ctx context.Context, dataset, day, runID string, record Record) error {
	m, err := recordToMap(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	m["source"] = c.source
	m["category"] = c.category
	m["day"] = day
	m["run_id"] = runID

	_, err = c.dataset.Write(ctx, []any{m}, lode.Metadata{})
	return err
}

// Close releases the underlying dataset's resources. Lode's current API
// does not require an explicit close.
func (c *S3Client) Close() error {
	return nil
}

var _ Client = (*S3Client)(nil)
