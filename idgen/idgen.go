// Package idgen generates the identifiers chattoc hands out: session ids
// for each engine run and the element ids written by the anchor tagger.
package idgen

import (
	"crypto/rand"
	"strconv"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 v7 UUIDs. Session ids use it so
// log lines from successive runs sort by start time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// NanoID returns a Generator of short base-36 ids.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// New returns a session id.
func New() string { return UUIDv7()() }

// Anchor formats the anchor attribute value for the 1-based position pos.
func Anchor(prefix string, pos int) string {
	return prefix + "-" + strconv.Itoa(pos)
}

// ElementID formats the fallback element id for the 1-based position pos.
func ElementID(prefix string, pos int) string {
	return prefix + "-anchor-" + strconv.Itoa(pos)
}

// Unique returns base if taken reports false for it, otherwise base with
// a random suffix from gen appended until an unused id is found.
func Unique(base string, taken func(string) bool, gen Generator) string {
	if !taken(base) {
		return base
	}
	if gen == nil {
		gen = NanoID(6)
	}
	for {
		id := base + "-" + gen()
		if !taken(id) {
			return id
		}
	}
}
