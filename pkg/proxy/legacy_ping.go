package proxy

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strings"

	"go.minekube.com/common/minecraft/component"

	protoutil "github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"golang.org/x/text/encoding/unicode"
)

const (
	legacyPingID      = 0xFE
	legacyHandshakeID = 0x02
	legacyKickID      = 0xFF
)

// answerLegacyPing peeks at the first byte of a fresh connection and, when
// it is a pre-Netty legacy ping (0xFE) or legacy handshake (0x02), answers
// it and reports the connection as handled. The returned conn must be used
// for all further reads, it retains the peeked bytes.
func (p *Proxy) answerLegacyPing(raw net.Conn) (conn net.Conn, handled bool) {
	br := bufio.NewReader(raw)
	conn = &bufferedConn{r: br, Conn: raw}

	first, err := br.Peek(1)
	if err != nil {
		return conn, true // broken connection, drop it
	}
	switch first[0] {
	case legacyPingID:
		p.log.V(1).Info("answering legacy ping", "remoteAddr", raw.RemoteAddr())
		_ = writeLegacyKick(raw, p.legacyPingResponse())
		return conn, true
	case legacyHandshakeID:
		_ = writeLegacyKick(raw, fmt.Sprintf("Outdated client! Please use %s", version.SupportedVersionsString))
		return conn, true
	}
	return conn, false
}

// legacyPingResponse renders the status as the pre-Netty
// §-delimited ping response string.
func (p *Proxy) legacyPingResponse() string {
	motd := ""
	if text, ok := p.motd.(*component.Text); ok {
		motd, _ = protoutil.MarshalPlain(text)
		motd = strings.ReplaceAll(motd, "\n", " ")
	}
	return fmt.Sprintf("§1\x00%d\x00%s\x00%s\x00%d\x00%d",
		version.MaximumVersion.Protocol,
		version.MaximumVersion.FirstName(),
		motd,
		p.PlayerCount(),
		p.cfg.Status.ShowMaxPlayers,
	)
}

// writeLegacyKick writes a legacy kick packet: the 0xFF id followed by a
// length-prefixed UTF-16BE string.
func writeLegacyKick(conn net.Conn, message string) error {
	encoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).
		NewEncoder().Bytes([]byte(message))
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(legacyKickID)
	// Length in UTF-16 code units.
	if err = protoutil.WriteUint16(buf, uint16(len(encoded)/2)); err != nil {
		return err
	}
	buf.Write(encoded)
	_, err = conn.Write(buf.Bytes())
	return err
}

// bufferedConn reads from the wrapped bufio.Reader to
// not lose bytes peeked at accept time.
type bufferedConn struct {
	r *bufio.Reader
	net.Conn
}

func (c *bufferedConn) Read(b []byte) (int, error) { return c.r.Read(b) }
