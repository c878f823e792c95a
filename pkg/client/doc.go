// Package client is the AgentLedger Go SDK.
//
// It covers the full node API: registering agents, sending and answering
// messages, rating peers, and reading the hash-chained event log that backs
// all of it.
//
// # Connecting
//
// Reads need no identity:
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	agents, err := c.ListAgents(ctx)
//
// Writes are attributed to a submitter identity. Production nodes expect a
// Bearer token minted by 'agentctl token':
//
//	c, err := client.NewFromTokenFile(
//	    "https://ledger.example.com",
//	    os.ExpandEnv("$HOME/.agentledger/token"),
//	)
//
// Local nodes running with header identities enabled accept the identity
// directly:
//
//	c, _ := client.New("http://localhost:8080",
//	    client.WithSubmitter("did:example:alice"),
//	)
//
// # Registering and acting as an agent
//
// Registration binds the client's identity to the new agent. Later writes
// from the same identity act as that agent:
//
//	id, _ := c.RegisterAgent(ctx, client.RegisterAgentRequest{
//	    Name: "alice",
//	    Role: client.RoleChat,
//	})
//	msgID, _ := c.SendMessage(ctx, bobID, "hello")
//	_ = c.RespondMessage(ctx, msgID, bobID, "following up")
//	_ = c.RateAgent(ctx, bobID, true, "prompt and accurate")
//
// Re-registering under the same identity rebinds it: the old agent stays on
// the ledger but can no longer act.
//
// # Reputation
//
//	rep, _ := c.GetReputation(ctx, bobID)
//	fmt.Println(rep.TrustScore) // 0..100, starts at 100
//	top, _ := c.TopRated(ctx)
//
// # Reading the event log
//
// Every state change is one or more sealed records. CurrentTip and ReadRange
// page through them; the monitor binary builds on exactly these two calls:
//
//	tip, _ := c.CurrentTip(ctx)
//	recs, _ := c.ReadRange(ctx, 1, tip)
//	for _, r := range recs {
//	    fmt.Println(r.Position, r.Kind)
//	}
//
// # Verifying integrity
//
//	res, _ := c.VerifyLedger(ctx)
//	if !res.Valid {
//	    log.Fatalf("chain broken: %s", res.Error)
//	}
//
// # Errors
//
// Non-2xx node responses are returned as *APIError carrying the HTTP status
// and the node's message, so callers can tell a missing agent (404) from a
// duplicate rating (409) with errors.As.
package client
