package cmd

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
)

var adjectives = []string{
	"amber", "brisk", "calm", "dapper", "eager", "fuzzy", "gentle", "hasty",
	"ivory", "jolly", "keen", "lively", "mellow", "nimble", "plucky", "quiet",
	"rustic", "swift", "tidy", "vivid",
}

var animals = []string{
	"badger", "crane", "dolphin", "falcon", "gecko", "heron", "ibis", "jackal",
	"kestrel", "lemur", "marmot", "newt", "otter", "puffin", "quail", "raven",
	"stoat", "tapir", "vole", "wren",
}

// randomUserName builds a memorable user id like "brisk-otter-42" for
// watch sessions where the operator did not pick one.
func randomUserName() string {
	return fmt.Sprintf("%s-%s-%d",
		adjectives[randomIndex(len(adjectives))],
		animals[randomIndex(len(animals))],
		randomIndex(100),
	)
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
