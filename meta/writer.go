package meta

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Buffer pool for building requests
var bufferPool = sync.Pool{
	New: func() any {
		// Typical request is ~100 bytes, allocate 256 bytes
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	// TODO: drop if buffer is too large
	buf.Reset()
	bufferPool.Put(buf)
}

// ValidateKey checks if a key is valid for the memcache protocol.
// Keys must be 1-250 bytes and contain no whitespace (unless base64-encoded).
// Returns an error describing the validation failure.
func ValidateKey(key string, hasBase64Flag bool) error {
	keyLen := len(key)

	if keyLen < MinKeyLength {
		return &InvalidKeyError{Message: "key is empty"}
	}

	if keyLen > MaxKeyLength {
		return &InvalidKeyError{Message: "key exceeds maximum length of 250 bytes"}
	}

	// Whitespace is only allowed if key is base64-encoded
	if !hasBase64Flag && strings.ContainsAny(key, " \t\r\n") {
		return &InvalidKeyError{Message: "key contains whitespace"}
	}

	return nil
}

// WriteRequest serializes a Request to wire format and writes it to w.
// Format: <command> <key> [<size>] <flags>*\r\n[<data>\r\n]
//
// For ms command: ms <key> <size> <flags>*\r\n<data>\r\n
// For other commands: <cmd> <key> <flags>*\r\n
// For mn command: mn\r\n
//
// Returns the number of bytes written and any error encountered. Validates
// key format before writing to prevent protocol errors.
//
// Uses bufio.Writer directly when available (the common case, a Connection);
// falls back to a pooled buffer for plain io.Writer so tests and one-off
// callers don't need to wrap their writer.
func WriteRequest(w io.Writer, req *Request) (int, error) {
	if bw, ok := w.(*bufio.Writer); ok {
		return writeRequestBuffered(bw, req)
	}
	return writeRequestUnbuffered(w, req)
}

// writeRequestBuffered writes using bufio.Writer for optimal performance.
func writeRequestBuffered(bw *bufio.Writer, req *Request) (int, error) {
	if req.Command == CmdNoOp {
		n, _ := bw.WriteString(string(req.Command) + CRLF)
		return n, bw.Flush()
	}

	hasBase64Flag := req.HasFlag(FlagBase64Key)
	if err := ValidateKey(req.Key, hasBase64Flag); err != nil {
		return 0, err
	}

	n := 0
	w := func(s string) {
		written, _ := bw.WriteString(s)
		n += written
	}

	w(string(req.Command))
	w(Space)
	w(req.Key)

	if req.Command == CmdSet {
		w(Space)
		w(strconv.Itoa(len(req.Data)))
	}

	for _, flag := range req.Flags {
		w(Space)
		bw.WriteByte(byte(flag.Type))
		n++
		if flag.Token != "" {
			w(flag.Token)
		}
	}

	w(CRLF)

	if req.Command == CmdSet {
		if len(req.Data) > 0 {
			written, err := bw.Write(req.Data)
			n += written
			if err != nil {
				return n, err
			}
		}
		w(CRLF)
	}

	return n, bw.Flush()
}

// writeRequestUnbuffered writes using a pooled buffer (for tests and non-buffered writers).
func writeRequestUnbuffered(w io.Writer, req *Request) (int, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if req.Command == CmdNoOp {
		buf.WriteString(string(req.Command))
		buf.WriteString(CRLF)
		return w.Write(buf.Bytes())
	}

	hasBase64Flag := req.HasFlag(FlagBase64Key)
	if err := ValidateKey(req.Key, hasBase64Flag); err != nil {
		return 0, err
	}

	buf.WriteString(string(req.Command))
	buf.WriteString(Space)
	buf.WriteString(req.Key)

	if req.Command == CmdSet {
		buf.WriteString(Space)
		buf.WriteString(strconv.Itoa(len(req.Data)))
	}

	for _, flag := range req.Flags {
		buf.WriteString(Space)
		buf.WriteByte(byte(flag.Type))
		if flag.Token != "" {
			buf.WriteString(flag.Token)
		}
	}

	buf.WriteString(CRLF)

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return n, err
	}

	if req.Command == CmdSet {
		total := n
		if len(req.Data) > 0 {
			written, err := w.Write(req.Data)
			total += written
			if err != nil {
				return total, err
			}
		}
		written, err := io.WriteString(w, CRLF)
		total += written
		return total, err
	}

	return n, nil
}
