package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/libs/cnrc"
	"github.com/rollkit/multida/log"
	"github.com/rollkit/multida/types"
)

const (
	// DefaultGasLimit is used when Config.GasLimit is zero.
	DefaultGasLimit = 80000

	heightLen = 8
	idLen     = heightLen + sha256.Size
)

// ErrInvalidNamespace is returned by New for namespaces that are not 8 hex encoded bytes.
var ErrInvalidNamespace = errors.New("namespace must be 16 hex characters")

// Config stores ledger backend configuration parameters.
type Config struct {
	Namespace      string        `json:"namespace"`
	Conn           string        `json:"conn"`
	AuthToken      string        `json:"auth_token,omitempty"`
	MaxSegmentSize uint64        `json:"max_segment_size"`
	GasLimit       uint64        `json:"gas_limit,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty"`
}

// Backend posts segments as PayForData transactions through a ledger node REST gateway.
type Backend struct {
	id        string
	client    *cnrc.Client
	namespace [8]byte
	config    Config
	logger    log.Logger
}

var _ da.Backend = &Backend{}
var _ da.Fetcher = &Backend{}

// New creates a ledger backend named id.
func New(id string, config Config, logger log.Logger) (*Backend, error) {
	raw, err := hex.DecodeString(config.Namespace)
	if err != nil || len(raw) != 8 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, config.Namespace)
	}
	if config.GasLimit == 0 {
		config.GasLimit = DefaultGasLimit
	}

	var opts []cnrc.Option
	if config.Timeout > 0 {
		opts = append(opts, cnrc.WithTimeout(config.Timeout))
	}
	if config.AuthToken != "" {
		opts = append(opts, cnrc.WithAuthToken(config.AuthToken))
	}
	client, err := cnrc.NewClient(config.Conn, opts...)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		id:     id,
		client: client,
		config: config,
		logger: logger.With("backend", id),
	}
	copy(b.namespace[:], raw)
	return b, nil
}

// ID implements da.Backend.
func (b *Backend) ID() string {
	return b.id
}

// MaxSegmentSize implements da.Backend.
func (b *Backend) MaxSegmentSize() uint64 {
	return b.config.MaxSegmentSize
}

// SubmitSegment implements da.Backend. The returned ID is the little endian
// block height followed by the sha256 of the segment.
func (b *Backend) SubmitSegment(ctx context.Context, seg types.Segment) (types.ID, error) {
	if uint64(len(seg.Data)) > b.config.MaxSegmentSize {
		return nil, fmt.Errorf("%w: %w: %d > %d", da.ErrRejected, da.ErrSegmentTooLarge, len(seg.Data), b.config.MaxSegmentSize)
	}

	txResponse, err := b.client.SubmitPFD(ctx, b.namespace, seg.Data, b.config.GasLimit)
	if err != nil {
		return nil, classify(err)
	}
	if txResponse.Code != 0 {
		return nil, fmt.Errorf("%w: codespace: '%s', code: %d, message: %s",
			da.ErrRejected, txResponse.Codespace, txResponse.Code, txResponse.RawLog)
	}
	if txResponse.Height <= 0 {
		return nil, fmt.Errorf("invalid height in tx response: %d", txResponse.Height)
	}

	b.logger.Debug("segment included", "batch", seg.BatchID, "index", seg.Index,
		"height", txResponse.Height, "txhash", txResponse.TxHash)

	return segmentID(uint64(txResponse.Height), seg.Data), nil
}

// Fetch implements da.Fetcher.
func (b *Backend) Fetch(ctx context.Context, id types.ID) ([]byte, error) {
	if len(id) != idLen {
		return nil, fmt.Errorf("%w: malformed id %x", da.ErrSegmentNotFound, id)
	}
	height := binary.LittleEndian.Uint64(id[:heightLen])

	data, err := b.client.NamespacedData(ctx, b.namespace, height)
	if err != nil {
		return nil, classify(err)
	}
	for _, msg := range data {
		sum := sha256.Sum256(msg)
		if bytes.Equal(sum[:], id[heightLen:]) {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("%w: height %d", da.ErrSegmentNotFound, height)
}

func segmentID(height uint64, data []byte) types.ID {
	id := make([]byte, heightLen, idLen)
	binary.LittleEndian.PutUint64(id, height)
	sum := sha256.Sum256(data)
	return append(id, sum[:]...)
}

// classify maps client errors to the backend error vocabulary. Context errors
// are kept so the coordinator can tell its own deadline apart.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, cnrc.ErrUnauthorized), errors.Is(err, cnrc.ErrRPC):
		return fmt.Errorf("%w: %w", da.ErrRejected, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", da.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", da.ErrNetwork, err)
	}
}
