// Package s3 publishes build plans to object storage.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"github.com/bundlekit/passctl/internal/config"
)

// ObjectStorage stores a single object: the plan of one output.
type ObjectStorage interface {
	// Upload replaces the object. The sha256 of the content is stored as
	// object metadata, and so is the revision unless empty.
	Upload(ctx context.Context, body io.ReadSeeker, revision string) error
	Download(ctx context.Context) (io.Reader, error)
}

var (
	_ ObjectStorage = (*AmazonS3)(nil)
	_ ObjectStorage = (*GCPCloudStorage)(nil)
	_ ObjectStorage = (*AzureBlobStorage)(nil)
	_ ObjectStorage = (*FileSystemStorage)(nil)
)

// New returns the object storage configured. Exactly one backend is expected.
func New(ctx context.Context, cfg config.ObjectStorage) (ObjectStorage, error) {
	switch {
	case cfg.AmazonS3 != nil:
		return newAmazonS3(ctx, cfg.AmazonS3)
	case cfg.GCPCloudStorage != nil:
		return newGCPCloudStorage(ctx, cfg.GCPCloudStorage)
	case cfg.AzureBlobStorage != nil:
		return newAzureBlobStorage(ctx, cfg.AzureBlobStorage)
	case cfg.FileSystemStorage != nil:
		return &FileSystemStorage{path: cfg.FileSystemStorage.Path, stdout: os.Stdout}, nil
	}

	return nil, errors.New("no object storage configured")
}

// metadata computes the object metadata and rewinds the body.
func metadata(body io.ReadSeeker, revision string) (map[string]string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return nil, err
	}

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	m := map[string]string{"sha256": hex.EncodeToString(h.Sum(nil))}
	if revision != "" {
		m["revision"] = revision
	}

	return m, nil
}

type AmazonS3 struct {
	client *s3.Client
	bucket string
	key    string
}

func newAmazonS3(ctx context.Context, cfg *config.AmazonS3) (*AmazonS3, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.Credentials != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(secretCredentialsProvider(cfg.Credentials)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.URL != "" {
			o.BaseEndpoint = aws.String(cfg.URL)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &AmazonS3{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func secretCredentialsProvider(ref *config.SecretRef) aws.CredentialsProvider {
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		value, err := ref.Resolve(ctx)
		if err != nil {
			return aws.Credentials{}, err
		}

		secret, ok := value.(config.SecretAWS)
		if !ok {
			return aws.Credentials{}, fmt.Errorf("secret %q is not an AWS secret", ref.Name)
		}

		return aws.Credentials{
			AccessKeyID:     secret.AccessKeyID,
			SecretAccessKey: secret.SecretAccessKey,
			SessionToken:    secret.SessionToken,
			Source:          "passctl secret " + ref.Name,
		}, nil
	}))
}

func (s *AmazonS3) Upload(ctx context.Context, body io.ReadSeeker, revision string) error {
	meta, err := metadata(body, revision)
	if err != nil {
		return err
	}

	uploader := manager.NewUploader(s.client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key),
		Body:     body,
		Metadata: meta,
	}); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}

	return nil
}

func (s *AmazonS3) Download(ctx context.Context) (io.Reader, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	bs, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(bs), nil
}

type GCPCloudStorage struct {
	client *storage.Client
	bucket string
	object string
}

func newGCPCloudStorage(ctx context.Context, cfg *config.GCPCloudStorage) (*GCPCloudStorage, error) {
	var opts []option.ClientOption

	if cfg.Credentials != nil {
		value, err := cfg.Credentials.Resolve(ctx)
		if err != nil {
			return nil, err
		}

		secret, ok := value.(config.SecretGCP)
		if !ok {
			return nil, fmt.Errorf("secret %q is not a GCP secret", cfg.Credentials.Name)
		}

		if secret.APIKey != "" {
			opts = append(opts, option.WithAPIKey(secret.APIKey))
		} else {
			opts = append(opts, option.WithCredentialsJSON([]byte(secret.Credentials)))
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCPCloudStorage{client: client, bucket: cfg.Bucket, object: cfg.Object}, nil
}

func (s *GCPCloudStorage) Upload(ctx context.Context, body io.ReadSeeker, revision string) error {
	meta, err := metadata(body, revision)
	if err != nil {
		return err
	}

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.Metadata = meta

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", s.bucket, s.object, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload gs://%s/%s: %w", s.bucket, s.object, err)
	}

	return nil
}

func (s *GCPCloudStorage) Download(ctx context.Context) (io.Reader, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download gs://%s/%s: %w", s.bucket, s.object, err)
	}
	defer r.Close()

	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(bs), nil
}

type AzureBlobStorage struct {
	client    *azblob.Client
	container string
	path      string
}

func newAzureBlobStorage(ctx context.Context, cfg *config.AzureBlobStorage) (*AzureBlobStorage, error) {
	var client *azblob.Client

	if cfg.Credentials != nil {
		value, err := cfg.Credentials.Resolve(ctx)
		if err != nil {
			return nil, err
		}

		secret, ok := value.(config.SecretAzure)
		if !ok {
			return nil, fmt.Errorf("secret %q is not an Azure secret", cfg.Credentials.Name)
		}

		cred, err := azblob.NewSharedKeyCredential(secret.AccountName, secret.AccountKey)
		if err != nil {
			return nil, err
		}

		client, err = azblob.NewClientWithSharedKeyCredential(cfg.AccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}

		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
	}

	return &AzureBlobStorage{client: client, container: cfg.Container, path: cfg.Path}, nil
}

func (s *AzureBlobStorage) Upload(ctx context.Context, body io.ReadSeeker, revision string) error {
	meta, err := metadata(body, revision)
	if err != nil {
		return err
	}

	m := make(map[string]*string, len(meta))
	for k, v := range meta {
		m[k] = &v
	}

	if _, err := s.client.UploadStream(ctx, s.container, s.path, body, &azblob.UploadStreamOptions{Metadata: m}); err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", s.container, s.path, err)
	}

	return nil
}

func (s *AzureBlobStorage) Download(ctx context.Context) (io.Reader, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s/%s: %w", s.container, s.path, err)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(bs), nil
}

// FileSystemStorage writes to a local file. Path "-" is standard output.
type FileSystemStorage struct {
	path   string
	stdout io.Writer
}

func (s *FileSystemStorage) Upload(_ context.Context, body io.ReadSeeker, _ string) error {
	if s.path == "-" {
		_, err := io.Copy(s.stdout, body)
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	bs, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, bs, 0o644)
}

func (s *FileSystemStorage) Download(context.Context) (io.Reader, error) {
	if s.path == "-" {
		return nil, errors.New("cannot download from standard output")
	}

	bs, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(bs), nil
}
