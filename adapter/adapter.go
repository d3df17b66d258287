package adapter

import "context"

// Adapter defines the interface for printer communication adapters
type Adapter interface {
	// Open opens the connection to the printer
	Open() error

	// Write sends data to the printer
	Write(data []byte) (int, error)

	// Read reads data from the printer
	Read(buf []byte) (int, error)

	// Close closes the connection to the printer
	Close() error

	// IsOpen returns whether the connection is open
	IsOpen() bool
}

// ContextOpener is implemented by adapters whose Open can block on the
// network and should honour cancellation.
type ContextOpener interface {
	OpenContext(ctx context.Context) error
}

// Releaser is implemented by adapters holding process-wide resources that
// outlive a single Open/Close cycle.
type Releaser interface {
	Release() error
}

// OpenContext opens a using ctx when the adapter supports it.
func OpenContext(ctx context.Context, a Adapter) error {
	if o, ok := a.(ContextOpener); ok {
		return o.OpenContext(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.Open()
}
