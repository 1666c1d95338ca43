// Package qemu reads target memory through a qemu-user GDB stub. qemu-user
// cannot expose the guest's memory map, so targets from this package rely on
// the single-page header heuristic of the reconstruction core.
package qemu

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"elfMap/elfmem"
)

type QemuDbg struct {
	conn net.Conn
	addr string
}

func Connect(host string, port int) (*QemuDbg, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", addr, err)
	}

	q := &QemuDbg{conn: conn, addr: addr}
	if _, err := conn.Write([]byte("+")); err != nil {
		conn.Close()
		return nil, err
	}

	fmt.Printf("Connected to QEMU GDB stub at %s\n", addr)
	return q, nil
}

func (q *QemuDbg) Close() error {
	if q.conn == nil {
		return nil
	}
	_ = q.sendPacket("D")
	return q.conn.Close()
}

func (q *QemuDbg) Description() string {
	return q.addr
}

// RangeTable is always nil: qemu-user has no map to offer.
func (q *QemuDbg) RangeTable() elfmem.RangeTable { return nil }

// IsLinux is false even for Linux guests: the stub gives no way to tell, and
// a missing ELF header should stay a silent not-found.
func (q *QemuDbg) IsLinux() bool { return false }

func checksum(data string) byte {
	var sum byte
	for i := 0; i < len(data); i++ {
		sum += data[i]
	}
	return sum
}

func (q *QemuDbg) sendPacket(data string) error {
	packet := fmt.Sprintf("$%s#%02x", data, checksum(data))

	for retry := 0; retry < 3; retry++ {
		if _, err := q.conn.Write([]byte(packet)); err != nil {
			return err
		}

		q.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		ack := make([]byte, 1)
		n, err := q.conn.Read(ack)
		q.conn.SetReadDeadline(time.Time{})

		if err != nil {
			if retry < 2 {
				continue
			}
			return fmt.Errorf("failed to read ack: %v", err)
		}
		if n > 0 && ack[0] == '-' {
			continue
		}
		return nil
	}

	return errors.New("failed to send packet after 3 retries")
}

func (q *QemuDbg) recvPacket() (string, error) {
	q.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer q.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 8192)
	n, err := q.conn.Read(buf)
	if err != nil {
		return "", err
	}
	resp := buf[:n]

	// Strip a leading ack and unwrap the $data#cs frame.
	for len(resp) > 0 && (resp[0] == '+' || resp[0] == '-') {
		resp = resp[1:]
	}
	if len(resp) < 4 || resp[0] != '$' {
		return "", fmt.Errorf("malformed packet %q", resp)
	}
	end := -1
	for i := 1; i < len(resp); i++ {
		if resp[i] == '#' {
			end = i
			break
		}
	}
	if end < 0 || end+3 > len(resp) {
		return "", fmt.Errorf("truncated packet %q", resp)
	}

	data := string(resp[1:end])
	var got byte
	if _, err := fmt.Sscanf(string(resp[end+1:end+3]), "%02x", &got); err != nil {
		return "", err
	}
	if got != checksum(data) {
		_, _ = q.conn.Write([]byte("-"))
		return "", errors.New("checksum mismatch")
	}

	_, _ = q.conn.Write([]byte("+"))
	return data, nil
}

func (q *QemuDbg) readResponse(cmd string) (string, error) {
	if err := q.sendPacket(cmd); err != nil {
		return "", err
	}
	return q.recvPacket()
}

func (q *QemuDbg) GetMemory(n uint, addr uint64) ([]byte, error) {
	resp, err := q.readResponse(fmt.Sprintf("m%x,%x", addr, n))
	if err != nil {
		return nil, err
	}
	if resp == "" || resp[0] == 'E' {
		return nil, &elfmem.ReadError{Addr: addr, Want: n}
	}

	data, err := hex.DecodeString(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode memory: %v", err)
	}
	if uint(len(data)) != n {
		return nil, &elfmem.ReadError{Addr: addr + uint64(len(data)), Want: n, Got: uint(len(data))}
	}
	return data, nil
}

// GetMemoryPartial degrades to shorter reads until one succeeds; the stub
// has no partial-read request of its own.
func (q *QemuDbg) GetMemoryPartial(n uint, addr uint64) ([]byte, error) {
	for m := n; m > 0; m-- {
		data, err := q.GetMemory(m, addr)
		if err == nil {
			return data, nil
		}
	}
	return []byte{}, nil
}
