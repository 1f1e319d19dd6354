package secretagent

import (
	"bytes"
	"encoding/json"
)

// Extract pulls the secret bytes out of a decoded agent response.
//
// SecretValue must be a JSON string holding standard base64. When it is
// missing the agent's Error text, if any, is carried in the returned error.
func Extract(doc Document) (*Payload, error) {
	raw, ok := doc[FieldSecretValue]
	if !ok {
		if msg := agentError(doc); msg != "" {
			return nil, newError(KindNotFound, "extract", "unable to fetch secret: agent error: %s", msg)
		}
		return nil, newError(KindNotFound, "extract", "unable to fetch secret: no %s field", FieldSecretValue)
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '"' {
		return nil, newError(KindNotFound, "extract", "unable to fetch secret: %s is not a string", FieldSecretValue)
	}

	// encoding/json decodes a JSON string into []byte as standard base64.
	var data []byte
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, wrapError(KindNotFound, "extract", "unable to fetch secret", err)
	}
	return &Payload{data: data}, nil
}

func agentError(doc Document) string {
	raw, ok := doc[FieldError]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}
	return msg
}
