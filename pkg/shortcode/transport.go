package shortcode

import (
	"context"

	"github.com/wrale/shortcode-oauth/internal/transport"
)

// Response is what a Transport returns for one call
type Response = transport.Response

// Transport performs a single HTTP call against the OAuth host. path is
// relative to the host and body, when non-nil, is sent as JSON. Non-2xx
// statuses are not errors at this level. Implementations must be safe for
// concurrent use.
type Transport interface {
	Do(ctx context.Context, method, path string, body any) (*Response, error)
}
