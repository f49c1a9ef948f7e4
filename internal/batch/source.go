package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/me/gowl/internal/convert"
)

// Document is one input to a batch run: an identifier and the loaded
// source text. The pipeline core never touches storage itself.
type Document struct {
	Name string
	Data []byte
}

// Source lists the workflow documents of one location.
type Source interface {
	Name() string
	List(ctx context.Context) ([]Document, error)
}

// OpenSource resolves a batch URI: s3://bucket/prefix opens an S3
// source, anything else is a local directory.
func OpenSource(ctx context.Context, uri, region string, logger *slog.Logger) (Source, error) {
	if bucket, prefix, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/"); ok && strings.HasPrefix(uri, "s3://") {
		return NewS3Source(ctx, bucket, prefix, region, logger)
	}
	if strings.HasPrefix(uri, "s3://") {
		return NewS3Source(ctx, strings.TrimPrefix(uri, "s3://"), "", region, logger)
	}
	return &DirSource{dir: uri}, nil
}

// DirSource walks a directory tree for workflow documents.
type DirSource struct {
	dir string
}

// NewDirSource creates a Source over a local directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Name() string { return s.dir }

// List returns every *.wdl and *.cwl file under the directory, sorted
// by relative path.
func (s *DirSource) List(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := convert.DetectLanguage(path); !ok {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, Document{Name: rel, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// s3API is the subset of the S3 client the source needs.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source lists workflow documents under an S3 prefix.
type S3Source struct {
	client s3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Source creates a Source over s3://bucket/prefix using the default
// AWS credential chain.
func NewS3Source(ctx context.Context, bucket, prefix, region string, logger *slog.Logger) (*S3Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Source{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "s3-source"),
	}, nil
}

func (s *S3Source) Name() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// List fetches every *.wdl and *.cwl object under the prefix, sorted by
// key.
func (s *S3Source) List(ctx context.Context) ([]Document, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if _, ok := convert.DetectLanguage(key); ok {
				keys = append(keys, key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)

	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
		}
		data, err := io.ReadAll(obj.Body)
		obj.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
		}
		name := strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
		if name == "" {
			name = key
		}
		docs = append(docs, Document{Name: name, Data: data})
	}
	s.logger.Debug("listed s3 source", "bucket", s.bucket, "prefix", s.prefix, "documents", len(docs))
	return docs, nil
}
