// Package remote copies jsonldb log files to and from off-site
// storage: S3-compatible object stores and SSH hosts. The engine never
// calls it; it exists for backup and restore tooling around the store.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kjk/jsonldb/atomicfile"
)

const mimeNDJSON = "application/x-ndjson"

type S3Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
}

type S3Client struct {
	Client *minio.Client
	Bucket string
}

func ctx() context.Context {
	return context.Background()
}

func NewS3(c *S3Config) (*S3Client, error) {
	if c == nil {
		return nil, errors.New("must provide config")
	}
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return nil, errors.New("must provide access, secret, bucket and endpoint")
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: true,
	})
	if err != nil {
		return nil, err
	}
	found, err := mc.BucketExists(ctx(), c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &S3Client{
		Client: mc,
		Bucket: c.Bucket,
	}, nil
}

func (c *S3Client) Exists(remotePath string) bool {
	_, err := c.Client.StatObject(ctx(), c.Bucket, remotePath, minio.StatObjectOptions{})
	return err == nil
}

// UploadLog uploads a log file (or a snapshot of one) as remotePath.
func (c *S3Client) UploadLog(remotePath string, localPath string) (minio.UploadInfo, error) {
	opts := minio.PutObjectOptions{
		ContentType: mimeNDJSON,
	}
	return c.Client.FPutObject(ctx(), c.Bucket, remotePath, localPath, opts)
}

// UploadLogBrotli uploads a brotli-compressed copy of the log.
// remotePath should carry a .br extension.
func (c *S3Client) UploadLogBrotli(remotePath string, localPath string) (minio.UploadInfo, error) {
	// TODO: use io.Pipe() to avoid buffering the whole file
	f, err := os.Open(localPath)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	_, err = io.Copy(w, f)
	err2 := w.Close()
	err3 := f.Close()
	for _, e := range []error{err, err2, err3} {
		if e != nil {
			return minio.UploadInfo{}, e
		}
	}
	opts := minio.PutObjectOptions{
		ContentType:     mimeNDJSON,
		ContentEncoding: "br",
	}
	r := bytes.NewReader(buf.Bytes())
	return c.Client.PutObject(ctx(), c.Bucket, remotePath, r, int64(buf.Len()), opts)
}

// DownloadLogAtomically fetches remotePath into dstPath so that
// dstPath never holds a partial download.
func (c *S3Client) DownloadLogAtomically(dstPath string, remotePath string) error {
	obj, err := c.Client.GetObject(ctx(), c.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	if err = os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, obj); err != nil {
		return err
	}
	return f.Close()
}

func (c *S3Client) Remove(remotePath string) error {
	return c.Client.RemoveObject(ctx(), c.Bucket, remotePath, minio.RemoveObjectOptions{})
}

// List returns object info for every backup under prefix.
func (c *S3Client) List(prefix string) <-chan minio.ObjectInfo {
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}
	return c.Client.ListObjects(ctx(), c.Bucket, opts)
}
