package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/logic/lending"
)

func decodeObligation(t *testing.T, data []byte) *lending.Obligation {
	t.Helper()
	o, err := lending.DecodeObligation(data)
	require.NoError(t, err)
	return o
}
