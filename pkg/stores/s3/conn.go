package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

/*
Config points at an S3 compatible endpoint and the bucket histories are
written to.
*/
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

/*
Conn wraps a minio client bound to a single bucket.
*/
type Conn struct {
	client *minio.Client
	bucket string
}

func NewConn(cfg Config) (*Conn, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})

	if err != nil {
		return nil, err
	}

	return &Conn{client: client, bucket: cfg.Bucket}, nil
}

/*
EnsureBucket creates the bucket when it does not exist yet.
*/
func (conn *Conn) EnsureBucket(ctx context.Context) error {
	exists, err := conn.client.BucketExists(ctx, conn.bucket)

	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	log.Info("creating bucket", "bucket", conn.bucket)
	return conn.client.MakeBucket(ctx, conn.bucket, minio.MakeBucketOptions{})
}

/*
Get reads the whole object. A missing key is reported as (nil, false, nil).
*/
func (conn *Conn) Get(ctx context.Context, objectKey string) ([]byte, bool, error) {
	obj, err := conn.client.GetObject(ctx, conn.bucket, objectKey, minio.GetObjectOptions{})

	if err != nil {
		return nil, false, missing(err)
	}

	defer obj.Close()

	buf, err := io.ReadAll(obj)

	if err != nil {
		return nil, false, missing(err)
	}

	return buf, true, nil
}

func (conn *Conn) Put(ctx context.Context, objectKey string, body []byte) error {
	_, err := conn.client.PutObject(
		ctx, conn.bucket, objectKey, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)

	return err
}

func missing(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}

	return err
}
