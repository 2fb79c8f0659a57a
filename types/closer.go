package types

import (
	"context"
)

// Closer is implemented by everything owning a codec session.
type Closer interface {
	Close(context.Context) error
}
