package main

import (
	"context"
	"fmt"
	"time"

	"github.com/catalyst-forge/forge-core/lfs"
)

// localSigner issues hrefs into this process's own (not-yet-implemented)
// LFS transfer endpoint, rooted at baseURL. It exists so Batch has a
// concrete URLSigner to exercise in standalone mode; an S3-backed
// deployment instead presigns directly against the bucket.
type localSigner struct {
	baseURL string
	ttl     time.Duration
}

func (s localSigner) SignURL(ctx context.Context, repoID int64, oid, operation string) (lfs.Action, error) {
	expires := time.Now().Add(s.ttl)
	return lfs.Action{
		HREF:      fmt.Sprintf("%s/lfs/objects/%d/%s?op=%s", s.baseURL, repoID, oid, operation),
		ExpiresAt: &expires,
	}, nil
}
