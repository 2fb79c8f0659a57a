//go:build !android
// +build !android

package libav

import (
	"context"
)

func hwSanityChecks(
	ctx context.Context,
	mimeType string,
	decoderName string,
) {
}
