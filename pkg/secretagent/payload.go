package secretagent

import (
	"github.com/awnumar/memguard"
)

// Payload owns the decoded bytes of one secret. The bytes are arbitrary
// binary content, not text.
type Payload struct {
	data []byte
}

// NewPayload takes ownership of data.
func NewPayload(data []byte) *Payload {
	return &Payload{data: data}
}

// Bytes returns the secret. The slice is owned by the payload and is zeroed
// by Wipe and Seal.
func (p *Payload) Bytes() []byte {
	return p.data
}

// Len returns the secret length in bytes.
func (p *Payload) Len() int {
	return len(p.data)
}

// Wipe zeroes the secret and drops it. Safe to call more than once.
func (p *Payload) Wipe() {
	memguard.WipeBytes(p.data)
	p.data = nil
}

// Seal moves the secret into an encrypted memguard enclave and wipes the
// plaintext. It returns nil for an empty payload.
func (p *Payload) Seal() *memguard.Enclave {
	if len(p.data) == 0 {
		p.data = nil
		return nil
	}
	enclave := memguard.NewEnclave(p.data)
	p.Wipe()
	return enclave
}

// String never reveals the secret.
func (p *Payload) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting.
func (p *Payload) GoString() string {
	return "[REDACTED]"
}
