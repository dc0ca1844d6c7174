package ports

import "context"

// Fetcher downloads external artifacts over the network.
//
//go:generate go run go.uber.org/mock/mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch downloads url into dest and returns the hex SHA-256 of the
	// downloaded bytes. dest is written atomically.
	Fetch(ctx context.Context, url, dest string) (sha256 string, err error)
}
