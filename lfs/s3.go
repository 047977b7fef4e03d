package lfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/gabriel-vasile/mimetype"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// S3Backend stores LFS objects in an S3-compatible bucket, keyed as
// <Prefix>/<oid[0:2]>/<oid>, per spec.md §4.4.3. Requests are signed with
// AWS Signature V4 by the AWS SDK's request signer — the same mechanism
// the teacher's aws/s3 package delegates to rather than hand-rolling
// SigV4, and LIST uses the SDK's ListObjectsV2 call, which issues
// list-type=2 and parses the response XML internally.
type S3Backend struct {
	client *s3.Client
	Bucket string
	Prefix string
	Region string
}

// NewS3Backend constructs an S3Backend using the AWS SDK's default
// credential chain, matching the teacher's aws/s3 client construction.
func NewS3Backend(ctx context.Context, bucket, prefix, region string, forcePathStyle bool) (*S3Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "NewS3Backend")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = forcePathStyle
	})
	return &S3Backend{client: client, Bucket: bucket, Prefix: prefix, Region: region}, nil
}

func (b *S3Backend) key(oid string) (string, error) {
	if err := ValidateOID(oid); err != nil {
		return "", err
	}
	if b.Prefix != "" {
		return fmt.Sprintf("%s/%s/%s", b.Prefix, oid[0:2], oid), nil
	}
	return fmt.Sprintf("%s/%s", oid[0:2], oid), nil
}

// Put implements Backend. The content type is sniffed from the first bytes
// of the object, mirroring the teacher's detectContentType, then the
// sniffed prefix is stitched back onto the stream so PutObject still sees
// the complete, unaltered object body.
func (b *S3Backend) Put(ctx context.Context, oid string, r io.Reader, size int64) error {
	key, err := b.key(oid)
	if err != nil {
		return err
	}

	peek := make([]byte, 512)
	n, _ := io.ReadFull(r, peek)
	contentType := "application/octet-stream"
	if n > 0 {
		if mt := mimetype.Detect(peek[:n]); mt != nil {
			contentType = mt.String()
		}
	}
	body := io.MultiReader(bytes.NewReader(peek[:n]), r)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Put")
	}
	return nil
}

// Get implements Backend.
func (b *S3Backend) Get(ctx context.Context, oid string) (io.ReadCloser, error) {
	key, err := b.key(oid)
	if err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ferrors.New(ferrors.KindObjectNotFound, "Get", "object not found")
		}
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "Get")
	}
	return out.Body, nil
}

// Exists implements Backend.
func (b *S3Backend) Exists(ctx context.Context, oid string) (bool, error) {
	key, err := b.key(oid)
	if err != nil {
		return false, err
	}
	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, ferrors.Wrap(err, ferrors.KindBackendError, "Exists")
	}
	return true, nil
}

// Delete implements Backend.
func (b *S3Backend) Delete(ctx context.Context, oid string) error {
	key, err := b.key(oid)
	if err != nil {
		return err
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Delete")
	}
	return nil
}

// List implements Backend, paging through ListObjectsV2 (list-type=2) and
// extracting the OID from the trailing path segment of each Key.
func (b *S3Backend) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.Bucket),
		Prefix: aws.String(b.Prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.KindBackendError, "List")
		}
		for _, obj := range page.Contents {
			oid := oidFromKey(aws.ToString(obj.Key))
			if oid == "" {
				continue
			}
			size := int64(0)
			if obj.Size != nil {
				size = *obj.Size
			}
			var mod int64
			if obj.LastModified != nil {
				mod = obj.LastModified.Unix()
			}
			out = append(out, ObjectInfo{OID: oid, Size: size, ModTime: unixTime(mod)})
		}
	}
	return out, nil
}

func oidFromKey(key string) string {
	idx := -1
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			idx = i
			break
		}
	}
	candidate := key[idx+1:]
	if oidRE.MatchString(candidate) {
		return candidate
	}
	return ""
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
