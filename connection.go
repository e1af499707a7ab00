package memcache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pior/metacache/meta"
)

// Authenticate performs the legacy "set auth" handshake memcached SASL
// deployments expect as the very first command on a new connection. Sent as
// a raw legacy ASCII "set" rather than through the meta codec, since meta
// commands have no equivalent and no server in the retrieval pack's domain
// speaks SASL over mg/ms. A response other than a literal STORED fails the
// connection outright.
func (c *Connection) Authenticate(username, password string) error {
	data := username + " " + password

	if _, err := fmt.Fprintf(c.Writer, "set auth x 0 %d%s", len(data), meta.CRLF); err != nil {
		return err
	}
	if _, err := c.Writer.WriteString(data + meta.CRLF); err != nil {
		return err
	}
	if err := c.Writer.Flush(); err != nil {
		return err
	}

	line, err := c.Reader.ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\r\n"), "\n")

	if line != meta.LegacyStored {
		return fmt.Errorf("auth rejected: %s", line)
	}
	return nil
}

// FlushAllReplyError means the connection itself stayed healthy but the
// server's reply to flush_all was something other than a literal OK (e.g. a
// SERVER_ERROR line or garbage). Distinguishing this from a write/read
// failure lets ServerPool.FlushAll surface a ProtocolError and keep the
// connection instead of destroying it.
type FlushAllReplyError struct {
	Line string
}

func (e *FlushAllReplyError) Error() string {
	return fmt.Sprintf("flush_all failed: %s", e.Line)
}

// FlushAll sends the legacy "flush_all [delay]" command and expects a
// literal OK. delaySeconds of 0 flushes immediately. A non-OK reply comes
// back as *FlushAllReplyError; any other error is a transport failure (the
// write, the flush, or the read itself failed).
func (c *Connection) FlushAll(delaySeconds int) error {
	cmd := "flush_all"
	if delaySeconds > 0 {
		cmd += " " + strconv.Itoa(delaySeconds)
	}

	if _, err := c.Writer.WriteString(cmd + meta.CRLF); err != nil {
		return err
	}
	if err := c.Writer.Flush(); err != nil {
		return err
	}

	line, err := c.Reader.ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\r\n"), "\n")

	if line != meta.LegacyOK {
		return &FlushAllReplyError{Line: line}
	}
	return nil
}
