package storage

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"short-drama-service/internal/config"
)

// PublicPrefix is the key prefix that anonymous clients may read.
const PublicPrefix = "characters/"

// NewMinioClient connects to MinIO and prepares the asset bucket: it is created
// in the configured region when missing and given an anonymous read policy on
// PublicPrefix, so the asset URLs handed to browsers resolve.
func NewMinioClient(ctx context.Context, cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.MinioBucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", cfg.MinioBucket)
		}
		log.Printf("Created bucket %s\n", cfg.MinioBucket)
	}

	policy, err := ReadOnlyPolicy(cfg.MinioBucket, PublicPrefix)
	if err != nil {
		return nil, err
	}
	if err := client.SetBucketPolicy(ctx, cfg.MinioBucket, policy); err != nil {
		return nil, errors.Wrapf(err, "set policy on bucket %s", cfg.MinioBucket)
	}
	return client, nil
}

// PublicBaseURL is the URL under which objects of the bucket are served to
// browsers. MINIO_PUBLIC_URL wins over the API endpoint.
func PublicBaseURL(cfg *config.Config) (string, error) {
	base := cfg.MinioPublicURL
	if base == "" {
		scheme := "http"
		if cfg.MinioSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.MinioEndpoint
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", errors.Errorf("invalid minio public url %q", base)
	}
	return strings.TrimRight(u.String(), "/") + "/" + cfg.MinioBucket, nil
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// ReadOnlyPolicy returns an S3 bucket policy granting anonymous GetObject on
// keys under prefix.
func ReadOnlyPolicy(bucket, prefix string) (string, error) {
	p := bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/" + prefix + "*"},
		}},
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encode bucket policy")
	}
	return string(raw), nil
}
