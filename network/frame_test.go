package network_test

import (
	"net"
	"testing"
	"time"

	"github.com/jrundle/nd-coin/network"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := []byte(`{"type":"transaction","data":{}}`)
	go func() {
		require.NoError(t, network.WriteFrame(client, payload))
	}()

	got, err := network.ReadFrame(server)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameTimesOutOnStalledPayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		var lenBuf [4]byte
		lenBuf[3] = 10 // announce 10 bytes, never send them
		_, _ = client.Write(lenBuf[:])
	}()

	start := time.Now()
	_, err := network.ReadFrame(server)
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}
