// Package secretagent is a client for the secrets-agent service.
//
// The agent stores credentials, keys and certificates and serves them over
// TCP, optionally wrapped in TLS. A Client turns an identifier of the form
//
//	secrets:[resource:]key
//
// into one request, sends it on a fresh connection, and decodes the answer
// into the raw secret bytes.
//
// # Identifiers
//
// The text after the "secrets:" prefix is split on its last colon. The part
// before is the resource (a namespace on the agent) and the part after is
// the key. Without a colon there is no resource:
//
//	secrets:db-password         key "db-password"
//	secrets:prod:db-password    resource "prod", key "db-password"
//	secrets:a:b:db-password     resource "a:b", key "db-password"
//
// # Wire format
//
// Requests and responses are frames: a 4-byte big-endian magic (0x51dec1cc),
// a 4-byte big-endian body length, then a JSON body.
//
//	request:  {"SecretKey": "db-password", "Resource": "prod"}
//	response: {"SecretValue": "<base64 of the secret bytes>"}
//	failure:  {"Error": "<agent message>"}
//
// # Usage
//
//	client, err := secretagent.NewClient(secretagent.NewConfig("127.0.0.1", "3005"),
//	    secretagent.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	payload, err := client.GetSecret(ctx, "secrets:prod:db-password")
//	if err != nil {
//	    return err
//	}
//	defer payload.Wipe()
//
// # Errors
//
// Every failure is an *Error whose Kind names the stage that failed:
// KindBadRequest (identifier), KindConnectionFailed (connect or TLS
// handshake), KindIO (send or receive, including timeouts), KindProtocol
// (frame or JSON) and KindNotFound (no usable secret in the response).
// Use errors.Is with the Err* sentinels or KindOf to branch on them.
//
// There is no caching, pooling or retrying: each GetSecret call is one
// round trip on its own connection.
package secretagent
