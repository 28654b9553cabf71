// Package tools provisions the external programs a build shells out to.
//
// The stylesheet compiler is resolved in order: an explicitly configured
// binary, a previously downloaded release in the cache directory, a fresh
// download of the pinned release, and finally whatever `sass` is on PATH.
package tools
