// Package storage publishes local files to an object store.
package storage

import (
	"context"
	"path"
	"strings"
)

// Uploader copies a local file to bucket/key.
type Uploader interface {
	Upload(ctx context.Context, localPath, bucket, key string) error
}

// KeyDir returns the directory portion of an object key, without a trailing slash.
func KeyDir(key string) string {
	dir := path.Dir(strings.TrimPrefix(key, "/"))
	if dir == "." {
		return ""
	}
	return dir
}

// TargetPath returns the s3:// prefix holding key. Crawlers are pointed at
// this prefix, never at the object itself.
func TargetPath(bucket, key string) string {
	dir := KeyDir(key)
	if dir == "" {
		return "s3://" + bucket
	}
	return "s3://" + bucket + "/" + dir
}
