// Package kindred implements the encrypted messaging pipeline of the
// Kindred dating app.
//
// Messages are encrypted per conversation before they reach row storage,
// delivered live over named pub/sub channels, and parked in a durable
// local outbox while the device is offline. This package provides the
// API facade that wires the subsystems together: the encryption codec,
// the message store gateway, the realtime channel manager, the offline
// outbox, and per-conversation session controllers.
//
// # Getting Started
//
// Load configuration, create a client, and open a conversation:
//
//	cfg, err := config.Load("kindred.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := kindred.NewClient("user-id", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	conv, err := client.OpenConversation(ctx, "match-id", "peer-id", func() {
//	    render(conv.Messages(), conv.State(), conv.PeerTyping())
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	conv.Send(ctx, "hey!")
//
// # Subsystems
//
//   - [github.com/kindredapp/kindred/crypto]: versioned envelope codec
//   - [github.com/kindredapp/kindred/store]: cached row-storage gateway
//   - [github.com/kindredapp/kindred/realtime]: pub/sub channel manager
//   - [github.com/kindredapp/kindred/queue]: durable offline outbox
//   - [github.com/kindredapp/kindred/session]: per-conversation controller
package kindred
