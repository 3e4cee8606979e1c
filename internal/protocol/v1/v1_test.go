package v1

import (
	"testing"

	"github.com/mellowdrifter/rtrpkic/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestSupports(t *testing.T) {
	assert.True(t, Supports(protocol.KindIPv4Prefix))
	assert.True(t, Supports(protocol.KindEndOfData))
	assert.False(t, Supports(protocol.KindRouterKey))
	assert.False(t, Supports(protocol.KindReserved))
}
