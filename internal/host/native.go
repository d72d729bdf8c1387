package host

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// DefaultMaxMessageSize is Chrome's limit for messages sent to a native host.
const DefaultMaxMessageSize = 1 << 20

// ErrMessageTooLarge is returned when a length prefix exceeds the limit.
var ErrMessageTooLarge = errors.New("native message exceeds size limit")

// ReadMessage reads one length-prefixed JSON message. It returns io.EOF
// when the stream ends cleanly between messages.
func ReadMessage(r io.Reader, maxSize int) (Message, error) {
	var msg Message
	body, err := readFrame(r, maxSize)
	if err != nil {
		return msg, err
	}
	if err := sonic.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("decode native message: %w", err)
	}
	return msg, nil
}

func readFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	n := binary.NativeEndian.Uint32(header[:])
	if uint64(n) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, n, maxSize)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	return body, nil
}

// WriteMessage writes v as one length-prefixed JSON message.
func WriteMessage(w io.Writer, v any) error {
	body, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode native message: %w", err)
	}

	var header [4]byte
	binary.NativeEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	return nil
}

// ServeNative runs the native messaging loop: each message is delivered and
// acknowledged with a Response. When the browser closes the stream, or ctx
// ends, the tracker is suspended so pending work is written.
func (b *Bridge) ServeNative(ctx context.Context, r io.Reader, w io.Writer, maxSize int) error {
	for {
		if err := ctx.Err(); err != nil {
			b.suspend(ctx)
			return err
		}

		body, err := readFrame(r, maxSize)
		if errors.Is(err, io.EOF) {
			b.log.Info("native messaging stream closed")
			b.suspend(ctx)
			return nil
		}
		if err != nil {
			// The stream cannot be resynchronized after a bad frame.
			b.suspend(ctx)
			return err
		}

		resp := Response{OK: true}
		var msg Message
		if err := sonic.Unmarshal(body, &msg); err != nil {
			resp = Response{Error: fmt.Sprintf("decode message: %v", err)}
		} else if err := b.Deliver(ctx, msg); err != nil {
			resp = Response{Error: err.Error()}
		}
		if !resp.OK {
			b.log.Warn("native message rejected", "error", resp.Error)
		}

		if err := WriteMessage(w, resp); err != nil {
			b.suspend(ctx)
			return err
		}
	}
}

func (b *Bridge) suspend(ctx context.Context) {
	err := b.Deliver(context.WithoutCancel(ctx), Message{Type: TypeSuspend})
	if err != nil {
		b.log.Error("suspend after native stream end failed", "error", err)
	}
}
