package cnrc

import (
	"errors"
	"time"
)

// Option configures a Client.
type Option func(*Client) error

// WithTimeout bounds every HTTP request issued by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.c.SetTimeout(timeout)
		return nil
	}
}

// WithAuthToken sends token as a bearer token with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) error {
		if token == "" {
			return errors.New("empty auth token")
		}
		c.c.SetAuthToken(token)
		return nil
	}
}
