package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAppliesGlobalFunctionsToEveryNode(t *testing.T) {
	n, ok := Get(NameServiceSearch)
	assert.True(t, ok)

	found := false
	for _, f := range n.Functions {
		if f.Name == FnRequestTransfer {
			found = true
		}
	}
	assert.True(t, found, "every node should carry the global function set")
}

func TestGetUnknownNodeReturnsFalse(t *testing.T) {
	_, ok := Get("does_not_exist")
	assert.False(t, ok)
}

func TestGetDoesNotMutateSharedTableEntry(t *testing.T) {
	first, _ := Get(NameServiceSearch)
	second, _ := Get(NameServiceSearch)
	assert.Equal(t, len(first.Functions), len(second.Functions), "repeated Get calls should not accumulate global functions")
}
