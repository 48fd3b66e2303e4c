// ABOUTME: Order-preserving tuple key codec
// ABOUTME: Encodes heterogeneous tuples so unsigned byte order matches value order

// Package keycodec implements a key codec: encode and decode routines that
// serialize heterogeneous tuples of primitive values into a byte sequence
// whose unsigned lexicographic order reproduces the natural ordering of the
// original tuple values. It is meant to be used as the key format of an
// ordered key-value store.
//
// The codec is purely synchronous, allocates no shared state, and performs
// no I/O; concurrent calls on disjoint inputs require no coordination.
package keycodec

// FormatVersion identifies the frozen kind-byte assignment this package
// implements. Bump it, and keep the old assignment available under a
// different version, before ever changing a Kind value below.
const FormatVersion = 1
