// Package cache stores synthesized segments so repeated text is not sent
// through the model twice. A small in-memory LRU sits in front of a
// zstd-compressed disk store.
package cache
