package qemu

import (
	"fmt"
	"net"
	"testing"

	"elfMap/elfmem"

	"github.com/stretchr/testify/require"
)

func pipeDbg(t *testing.T) (*QemuDbg, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return &QemuDbg{conn: client, addr: "pipe"}, server
}

func frame(payload string) string {
	return fmt.Sprintf("$%s#%02x", payload, checksum(payload))
}

func TestRecvPacketStripsAcks(t *testing.T) {
	q, server := pipeDbg(t)

	ack := make(chan byte, 1)
	go func() {
		server.Write([]byte("+" + frame("OK")))
		buf := make([]byte, 1)
		server.Read(buf)
		ack <- buf[0]
	}()

	data, err := q.recvPacket()
	require.NoError(t, err)
	require.Equal(t, "OK", data)
	require.Equal(t, byte('+'), <-ack)
}

func TestRecvPacketChecksumMismatch(t *testing.T) {
	q, server := pipeDbg(t)

	nak := make(chan byte, 1)
	go func() {
		server.Write([]byte("$OK#00"))
		buf := make([]byte, 1)
		server.Read(buf)
		nak <- buf[0]
	}()

	_, err := q.recvPacket()
	require.ErrorContains(t, err, "checksum")
	require.Equal(t, byte('-'), <-nak)
}

func TestRecvPacketMalformed(t *testing.T) {
	q, server := pipeDbg(t)

	go server.Write([]byte("garbage"))

	_, err := q.recvPacket()
	require.ErrorContains(t, err, "malformed")
}

func TestGetMemoryRoundTrip(t *testing.T) {
	q, server := pipeDbg(t)

	req := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		req <- string(buf[:n])
		server.Write([]byte("+"))
		server.Write([]byte(frame("deadbeef")))
		server.Read(make([]byte, 1))
	}()

	data, err := q.GetMemory(4, 0x1000)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
	require.Equal(t, frame("m1000,4"), <-req)
}

func TestGetMemoryErrorResponse(t *testing.T) {
	q, server := pipeDbg(t)

	go func() {
		server.Read(make([]byte, 64))
		server.Write([]byte("+"))
		server.Write([]byte(frame("E14")))
		server.Read(make([]byte, 1))
	}()

	_, err := q.GetMemory(4, 0x1000)
	var rerr *elfmem.ReadError
	require.ErrorAs(t, err, &rerr)
}
