// Package mem allocates cache-line aligned blocks for vector storage.
package mem
