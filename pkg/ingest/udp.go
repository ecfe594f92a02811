package ingest

import (
	"bufio"
	"net"
	"strings"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// ServeUDP reads datagrams from conn until it is closed, treating each
// one as one-or-more newline-separated lines (a datagram boundary
// carries no protocol meaning of its own, unlike the TCP listener's
// stream framing). A malformed line inside a datagram is logged and
// skipped; the rest of the datagram's lines are still processed.
func (h *Handler) ServeUDP(conn net.PacketConn) error {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		h.handleDatagram(buf[:n])
	}
}

func (h *Handler) handleDatagram(data []byte) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		h.handleLine(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		cclog.Warnf("ingest: udp datagram scan: %v", err)
	}
}
