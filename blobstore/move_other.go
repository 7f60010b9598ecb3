//go:build !unix

package blobstore

func isCrossDevice(error) bool {
	return false
}
