package noderpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckVectorIndexService(t *testing.T) {
	held := map[uint64]bool{7: true}
	svc := NewService(func(regionID uint64) bool { return held[regionID] })

	resp, err := svc.CheckVectorIndex(context.Background(), &CheckVectorIndexRequest{VectorIndexID: 7})
	require.NoError(t, err)
	require.True(t, resp.IsExist)

	resp, err = svc.CheckVectorIndex(context.Background(), &CheckVectorIndexRequest{VectorIndexID: 8})
	require.NoError(t, err)
	require.False(t, resp.IsExist)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := jsonCodec{}
	require.Equal(t, CodecName, codec.Name())

	data, err := codec.Marshal(&CheckVectorIndexRequest{VectorIndexID: 9})
	require.NoError(t, err)

	var decoded CheckVectorIndexRequest
	require.NoError(t, codec.Unmarshal(data, &decoded))
	require.Equal(t, uint64(9), decoded.VectorIndexID)

	require.NoError(t, codec.Unmarshal(nil, &decoded))
}
