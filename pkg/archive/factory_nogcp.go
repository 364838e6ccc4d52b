//go:build !gcp

package archive

import (
	"context"
	"fmt"
)

func newGCSStoreFromEnv(ctx context.Context) (Store, error) {
	return nil, fmt.Errorf("GCS archive storage is not enabled in this build (use -tags gcp)")
}
