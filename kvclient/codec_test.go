package kvclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	require.Equal(t, codecName, c.Name())

	req := putRequest{Key: "owner_map", Value: []byte{1, 2, 3}}
	buf, err := c.Marshal(req)
	require.NoError(t, err)

	var got putRequest
	require.NoError(t, c.Unmarshal(buf, &got))
	require.Equal(t, req, got)
}
