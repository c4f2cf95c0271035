package cnrc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrUnauthorized is returned when the node refuses the auth token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRPC is returned when the node answers with an error message.
	ErrRPC = errors.New("node returned error")
)

// Client is a minimal client of the celestia-node REST gateway.
type Client struct {
	c *resty.Client
}

// NewClient creates a client talking to the gateway at baseURL.
func NewClient(baseURL string, options ...Option) (*Client, error) {
	c := &Client{
		c: resty.New(),
	}

	c.c.SetBaseURL(baseURL)

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SubmitPFD submits data as a PayForData transaction in the given namespace.
func (c *Client) SubmitPFD(ctx context.Context, namespaceID [8]byte, data []byte, gasLimit uint64) (*TxResponse, error) {
	req := SubmitPFDRequest{
		NamespaceID: hex.EncodeToString(namespaceID[:]),
		Data:        hex.EncodeToString(data),
		GasLimit:    gasLimit,
	}
	var res TxResponse
	var rpcErr string
	resp, err := c.c.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&res).
		SetError(&rpcErr).
		Post(submitPFDEndpoint)
	if err := checkResponse(resp, err, rpcErr); err != nil {
		return nil, err
	}
	return &res, nil
}

// NamespacedData returns all messages posted in namespaceID at height.
func (c *Client) NamespacedData(ctx context.Context, namespaceID [8]byte, height uint64) ([][]byte, error) {
	var res NamespacedDataResponse
	var rpcErr string
	resp, err := c.c.R().
		SetContext(ctx).
		SetResult(&res).
		SetError(&rpcErr).
		Get(namespacedPath(namespacedDataEndpoint, namespaceID, height))
	if err := checkResponse(resp, err, rpcErr); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// checkResponse converts transport failures, auth failures and error bodies to errors.
// Transport errors are returned unwrapped so callers can inspect them.
func checkResponse(resp *resty.Response, err error, rpcErr string) error {
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status())
	}
	if rpcErr != "" {
		return fmt.Errorf("%w: %s", ErrRPC, rpcErr)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s", ErrRPC, resp.Status())
	}
	return nil
}

func namespacedPath(endpoint string, namespaceID [8]byte, height uint64) string {
	return fmt.Sprintf("%s/%s/height/%d", endpoint, hex.EncodeToString(namespaceID[:]), height)
}
