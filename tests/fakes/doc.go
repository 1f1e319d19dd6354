// Package fakes provides test doubles for the secretagent client.
//
// FakeAgent is a manually implemented secrets agent. It speaks the real
// frame and JSON protocol, either over an in-memory net.Pipe (as a
// secretagent.Dialer) or on a loopback TCP listener, and can be scripted to
// misbehave at each stage of a request.
//
// Usage:
//
//	agent := fakes.NewFakeAgent().
//	    WithSecret("secrets:prod:db-password", []byte("hunter2"))
//	client, _ := secretagent.NewClient(cfg, secretagent.WithDialer(agent))
//	payload, err := client.GetSecret(ctx, "secrets:prod:db-password")
//	// agent.Closes() == 1
package fakes
