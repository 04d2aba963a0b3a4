package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"

	"atomicescrow/storage"
)

// EmptyRoot is the root of a prefix with no entries.
var EmptyRoot = gethtypes.EmptyRootHash

// Root computes the Merkle Patricia root over every entry stored under prefix.
// Entries are keyed by the remainder of their key after the prefix, so two
// stores holding the same entries under different prefixes share a root.
//
// The remainders must all have the same width; the stack trie only accepts
// keys in ascending order and none may be a prefix of another. Empty values
// are skipped.
func Root(db storage.Scanner, prefix []byte) (common.Hash, error) {
	st := gethtrie.NewStackTrie(nil)
	var (
		width     = -1
		updateErr error
	)
	err := db.Iterate(prefix, func(key, value []byte) bool {
		if len(value) == 0 {
			return true
		}
		suffix := key[len(prefix):]
		if width < 0 {
			width = len(suffix)
		}
		if len(suffix) == 0 || len(suffix) != width {
			updateErr = fmt.Errorf("trie: key %x has width %d, want %d", key, len(suffix), width)
			return false
		}
		if updateErr = st.Update(suffix, value); updateErr != nil {
			return false
		}
		return true
	})
	if err != nil {
		return common.Hash{}, err
	}
	if updateErr != nil {
		return common.Hash{}, updateErr
	}
	return st.Hash(), nil
}
