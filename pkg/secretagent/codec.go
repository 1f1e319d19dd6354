package secretagent

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/awnumar/memguard"
)

const (
	// Magic opens every frame exchanged with the agent.
	Magic uint32 = 0x51dec1cc

	// HeaderSize is magic (4 bytes) plus body length (4 bytes), both big-endian.
	HeaderSize = 8

	// MaxFrameSize caps the body length accepted from the agent.
	MaxFrameSize = 10 * 1024 * 1024
)

// Wire field names used by the agent.
const (
	FieldSecretKey   = "SecretKey"
	FieldResource    = "Resource"
	FieldSecretValue = "SecretValue"
	FieldError       = "Error"
)

// Request is the JSON body of a secret request.
type Request struct {
	SecretKey string  `json:"SecretKey"`
	Resource  *string `json:"Resource,omitempty"`
}

// Response is the JSON body the agent answers with. SecretValue holds the
// base64 encoding of the secret bytes.
type Response struct {
	SecretValue string `json:"SecretValue,omitempty"`
	Error       string `json:"Error,omitempty"`
}

// NewSecretResponse builds the response an agent sends for value.
func NewSecretResponse(value []byte) Response {
	return Response{SecretValue: base64.StdEncoding.EncodeToString(value)}
}

// Document is a decoded JSON object keyed by field name.
type Document map[string]json.RawMessage

// Wipe zeroes every raw field value held by the document.
func (d Document) Wipe() {
	for _, v := range d {
		memguard.WipeBytes(v)
	}
}

// EncodeRequest renders the complete request frame for p. The resource is
// sent whenever the path carried one, even when it is empty.
//
// Key and resource must be valid UTF-8: encoding/json would replace bad
// bytes with U+FFFD and name a different secret on the wire.
func EncodeRequest(p SecretPath) ([]byte, error) {
	if p.Key == "" {
		return nil, newError(KindBadRequest, "encode", "empty secret key")
	}
	if !utf8.ValidString(p.Key) || !utf8.ValidString(p.Resource) {
		return nil, newError(KindBadRequest, "encode", "secret identifier is not valid UTF-8")
	}

	req := Request{SecretKey: p.Key}
	if p.HasResource {
		res := p.Resource
		req.Resource = &res
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, wrapError(KindBadRequest, "encode", "failed to marshal request", err)
	}
	return frame(body), nil
}

// DecodeRequest parses a request body as read by ReadFrame. It is the
// agent side of EncodeRequest.
func DecodeRequest(body []byte) (SecretPath, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return SecretPath{}, wrapError(KindProtocol, "decode", "invalid secret request", err)
	}
	if req.SecretKey == "" {
		return SecretPath{}, newError(KindBadRequest, "decode", "empty secret key")
	}

	p := SecretPath{Key: req.SecretKey}
	if req.Resource != nil {
		p.Resource = *req.Resource
		p.HasResource = true
	}
	return p, nil
}

// EncodeResponse renders the complete response frame for resp.
func EncodeResponse(resp Response) ([]byte, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, wrapError(KindProtocol, "encode", "failed to marshal response", err)
	}
	return frame(body), nil
}

// ReadFrame reads one frame from r and returns its body.
//
// A stream that ends before or inside a frame, a wrong magic, or a length
// of zero or above MaxFrameSize is a protocol error. Any other read failure
// is an IO error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, newError(KindProtocol, "receive", "empty secret response")
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, newError(KindProtocol, "receive", "truncated frame header")
		default:
			return nil, wrapError(KindIO, "receive", "failed to read frame header", err)
		}
	}

	if magic := binary.BigEndian.Uint32(header[0:4]); magic != Magic {
		return nil, newError(KindProtocol, "receive", "bad frame magic %#08x", magic)
	}

	size := binary.BigEndian.Uint32(header[4:8])
	if size == 0 {
		return nil, newError(KindProtocol, "receive", "empty secret response")
	}
	if size > MaxFrameSize {
		return nil, newError(KindProtocol, "receive", "frame of %d bytes exceeds limit of %d", size, MaxFrameSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		memguard.WipeBytes(body)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, newError(KindProtocol, "receive", "truncated frame body")
		}
		return nil, wrapError(KindIO, "receive", "failed to read frame body", err)
	}
	return body, nil
}

// DecodeResponse parses a response body into a Document. The body must be
// exactly one JSON object.
func DecodeResponse(body []byte) (Document, error) {
	if len(body) == 0 {
		return nil, newError(KindProtocol, "decode", "empty secret response")
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, wrapError(KindProtocol, "decode", "invalid secret response", err)
	}
	if doc == nil {
		return nil, newError(KindProtocol, "decode", "invalid secret response: not a JSON object")
	}
	return doc, nil
}

func frame(body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	return buf
}
