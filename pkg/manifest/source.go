package manifest

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/pathway/internal/errors"
)

// MaxSize bounds the manifest documents a Source reads.
const MaxSize = 8 << 20

// Source reads a manifest document.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads a manifest from the local filesystem.
type FileSource struct {
	Path string
}

// Read implements Source.
func (s FileSource) Read(ctx context.Context) ([]byte, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

func (s FileSource) String() string { return s.Path }

// S3API is the part of *s3.Client a S3Source needs.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a manifest object from S3.
//
//	client := s3.NewFromConfig(cfg)
//	m, err := manifest.Load(ctx, manifest.S3Source{Client: client, Bucket: "routes", Key: "app.json"})
type S3Source struct {
	Client S3API
	Bucket string
	Key    string
}

// Read implements Source.
func (s S3Source) Read(ctx context.Context) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return readLimited(out.Body)
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSize {
		return nil, errors.New(errors.EManifest).WithDetailf("manifest larger than %d bytes", MaxSize)
	}
	return data, nil
}

// Load reads and parses a manifest from src.
func Load(ctx context.Context, src Source) (*Manifest, error) {
	data, err := src.Read(ctx)
	if err != nil {
		if errors.HasCode(err, errors.EManifest) {
			return nil, err
		}
		return nil, errors.New(errors.EManifest).
			WithDetailf("read %s", src).
			Wrap(err)
	}
	return Parse(data)
}

// S3Options configures the S3 client OpenSource builds for s3:// locations.
type S3Options struct {
	Client   S3API
	Region   string
	Endpoint string

	// UsePathStyle addresses buckets as endpoint/bucket, as S3-compatible
	// stores such as MinIO expect.
	UsePathStyle bool
}

// OpenSource returns the Source for a location: "s3://bucket/key" or a
// file path.
func OpenSource(location string, opts S3Options) (Source, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		if location == "" {
			return nil, errors.New(errors.EManifest).WithDetail("empty manifest location")
		}
		return FileSource{Path: location}, nil
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return nil, errors.New(errors.EManifest).
			WithDetailf("invalid s3 location %q", location).
			WithSuggestion("use s3://bucket/key")
	}
	client := opts.Client
	if client == nil {
		client = newS3Client(opts)
	}
	return S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

// newS3Client builds a client from the standard AWS environment variables.
// Without an access key, requests are anonymous.
func newS3Client(opts S3Options) *s3.Client {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	o := s3.Options{
		Region:       region,
		UsePathStyle: opts.UsePathStyle,
		Credentials:  aws.AnonymousCredentials{},
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		creds := aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "Environment",
		}
		o.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	}
	return s3.New(o)
}
