package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with parameters.
	// Returns the response body as bytes or an error.
	// ctx: cancellation aborts in-flight requests and retry waits promptly.
	Get(ctx context.Context, url string, params map[string]string) ([]byte, error)
}
