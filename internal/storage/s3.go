package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Storage struct {
	client *s3.Client
	config S3Config
}

type S3Config struct {
	Bucket string
	// HTTPClient overrides the SDK's HTTP client, e.g. to add retries.
	HTTPClient *http.Client
}

func NewS3Storage(ctx context.Context, s S3Config) (Storage, error) {
	var optsFunc []func(*config.LoadOptions) error

	s3EndpointUrl, ok := os.LookupEnv("S3_ENDPOINT_URL")
	if ok {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               s3EndpointUrl,
				HostnameImmutable: true,
			}, nil
		})
		optsFunc = append(optsFunc, config.WithEndpointResolverWithOptions(resolver))
	}
	if s.HTTPClient != nil {
		optsFunc = append(optsFunc, config.WithHTTPClient(s.HTTPClient))
	}

	c, err := config.LoadDefaultConfig(ctx, optsFunc...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	s3Client := s3.NewFromConfig(c, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &s3Storage{
		client: s3Client,
		config: s,
	}, nil
}

func (s *s3Storage) Put(ctx context.Context, key string, data []byte) (string, error) {
	key = s.key(key)
	contentType := http.DetectContentType(data)

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.url(key), nil
}

func (s *s3Storage) Get(ctx context.Context, url string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(url)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	var buffer bytes.Buffer
	_, err = buffer.ReadFrom(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}

	return buffer.Bytes(), nil
}

// List lists one level below directory, so objects in deeper "folders" are
// not returned.
func (s *s3Storage) List(ctx context.Context, directory string) ([]string, error) {
	prefix := strings.TrimSuffix(s.key(directory), "/") + "/"
	if prefix == "/" {
		prefix = ""
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.config.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var names []string
	found := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}
		if len(page.CommonPrefixes) > 0 {
			found = true
		}
		for _, object := range page.Contents {
			found = true
			name := strings.TrimPrefix(aws.ToString(object.Key), prefix)
			if name == "" {
				continue
			}
			names = append(names, name)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, s.url(prefix))
	}

	sort.Strings(names)
	return names, nil
}

func (s *s3Storage) Join(directory string, name string) string {
	return s.url(strings.TrimSuffix(s.key(directory), "/") + "/" + name)
}

func (s *s3Storage) key(url string) string {
	bucketURL := fmt.Sprintf("s3://%s", s.config.Bucket)
	if !strings.HasPrefix(url, bucketURL) {
		return url
	}
	return strings.TrimPrefix(strings.TrimPrefix(url, bucketURL), "/")
}

func (s *s3Storage) url(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.config.Bucket, key)
}
