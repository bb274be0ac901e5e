package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lorraine/cropcast/internal/contracts"
)

func TestPartitionItems(t *testing.T) {
	modeled := []contracts.ItemID{11, 23, 42}
	observed := []contracts.ItemID{23, 11, 99}

	ready, noHistory := partitionItems(modeled, observed)

	assert.Equal(t, []contracts.ItemID{11, 23}, ready)
	assert.Equal(t, []contracts.ItemID{42}, noHistory)
}

func TestPartitionItemsNoHistoryAtAll(t *testing.T) {
	ready, noHistory := partitionItems([]contracts.ItemID{11}, nil)

	assert.Empty(t, ready)
	assert.Equal(t, []contracts.ItemID{11}, noHistory)
}
