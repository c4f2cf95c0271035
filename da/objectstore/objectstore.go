package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
	"github.com/thanos-io/objstore/providers/gcs"
	"github.com/thanos-io/objstore/providers/s3"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/log"
	"github.com/rollkit/multida/types"
)

// Scheme selects the object store provider.
type Scheme string

const (
	SchemeGCS        Scheme = "gcs"
	SchemeS3         Scheme = "s3"
	SchemeFilesystem Scheme = "filesystem"
)

const component = "multida"

// ErrUnsupportedScheme is returned for providers this package cannot open.
var ErrUnsupportedScheme = errors.New("unsupported object store scheme")

// Config stores object store backend configuration parameters.
type Config struct {
	Scheme         Scheme            `json:"scheme"`
	Params         map[string]string `json:"params"`
	MaxSegmentSize uint64            `json:"max_segment_size"`
}

// Backend writes every segment as one object.
type Backend struct {
	id      string
	bucket  objstore.Bucket
	maxSize uint64
	logger  log.Logger
}

var _ da.Backend = &Backend{}
var _ da.Fetcher = &Backend{}

// New opens the bucket described by config.
func New(ctx context.Context, id string, config Config, logger log.Logger) (*Backend, error) {
	bucket, err := openBucket(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s bucket for %s: %w", config.Scheme, id, err)
	}
	if root := config.Params["root"]; root != "" {
		bucket = objstore.NewPrefixedBucket(bucket, root)
	}
	return NewWithBucket(id, bucket, config.MaxSegmentSize, logger), nil
}

// NewWithBucket wraps an already opened bucket.
func NewWithBucket(id string, bucket objstore.Bucket, maxSegmentSize uint64, logger log.Logger) *Backend {
	return &Backend{
		id:      id,
		bucket:  bucket,
		maxSize: maxSegmentSize,
		logger:  logger.With("backend", id),
	}
}

func openBucket(ctx context.Context, config Config, logger log.Logger) (objstore.Bucket, error) {
	params := config.Params
	switch config.Scheme {
	case SchemeGCS:
		return gcs.NewBucketWithConfig(ctx, log.Kit(logger), gcs.Config{
			Bucket:         params["bucket"],
			ServiceAccount: params["credential"],
		}, component, passthrough)
	case SchemeS3:
		insecure := false
		if v := params["insecure"]; v != "" {
			var err error
			if insecure, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("parse insecure: %w", err)
			}
		}
		return s3.NewBucketWithConfig(log.Kit(logger), s3.Config{
			Bucket:    params["bucket"],
			Endpoint:  params["endpoint"],
			Region:    params["region"],
			AccessKey: params["access_key_id"],
			SecretKey: params["secret_access_key"],
			Insecure:  insecure,
		}, component, passthrough)
	case SchemeFilesystem:
		return filesystem.NewBucket(params["dir"])
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, config.Scheme)
	}
}

func passthrough(tpt http.RoundTripper) http.RoundTripper {
	return tpt
}

// ID implements da.Backend.
func (b *Backend) ID() string {
	return b.id
}

// MaxSegmentSize implements da.Backend.
func (b *Backend) MaxSegmentSize() uint64 {
	return b.maxSize
}

// SubmitSegment implements da.Backend. The returned ID is the object name.
func (b *Backend) SubmitSegment(ctx context.Context, seg types.Segment) (types.ID, error) {
	if uint64(len(seg.Data)) > b.maxSize {
		return nil, fmt.Errorf("%w: %w: %d > %d", da.ErrRejected, da.ErrSegmentTooLarge, len(seg.Data), b.maxSize)
	}

	name := ObjectName(seg.BatchID, seg.Index)
	if err := b.bucket.Upload(ctx, name, bytes.NewReader(seg.Data)); err != nil {
		return nil, b.classify(ctx, err)
	}
	b.logger.Debug("segment uploaded", "object", name, "size", len(seg.Data))
	return types.ID(name), nil
}

// Fetch implements da.Fetcher.
func (b *Backend) Fetch(ctx context.Context, id types.ID) ([]byte, error) {
	rc, err := b.bucket.Get(ctx, string(id))
	if err != nil {
		if b.bucket.IsObjNotFoundErr(err) {
			return nil, fmt.Errorf("%w: %s", da.ErrSegmentNotFound, id)
		}
		return nil, b.classify(ctx, err)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, b.classify(ctx, err)
	}
	return data, nil
}

// Close releases the underlying bucket.
func (b *Backend) Close() error {
	return b.bucket.Close()
}

// ObjectName returns the object a segment is stored under.
func ObjectName(batchID uint64, index uint32) string {
	return fmt.Sprintf("%020d/%08d", batchID, index)
}

func (b *Backend) classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	case b.bucket.IsAccessDeniedErr(err):
		return fmt.Errorf("%w: %w", da.ErrRejected, err)
	default:
		return fmt.Errorf("%w: %w", da.ErrNetwork, err)
	}
}
