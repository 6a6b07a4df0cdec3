// Package mcp implements the Model Context Protocol's JSON-RPC 2.0
// runtime: a symmetric Peer abstraction plus Client and Server endpoints
// that compose tools, prompts, resources, completions, logging, roots,
// and sampling/elicitation capability modules over any bidirectional
// byte stream.
//
// Starting a server over stdio:
//
//	transport := mcp.NewLineTransport(os.Stdin, os.Stdout)
//	defer transport.Close()
//
//	server := mcp.NewServer(transport, mcp.Implementation{
//		Name:    "my-server",
//		Version: "1.0.0",
//	}, mcp.WithRootsFallback())
//
//	description := "Say hello to someone"
//	server.Tools.RegisterTool(mcp.Tool{
//		Name:        "greet",
//		Description: &description,
//	}, func(ctx context.Context, arguments json.RawMessage) (mcp.CallToolResult, error) {
//		var args struct{ Name string `json:"name"` }
//		if err := json.Unmarshal(arguments, &args); err != nil {
//			return mcp.CallToolResult{}, err
//		}
//		return mcp.CallToolResult{
//			Content: []mcp.Content{mcp.TextContent("hello, " + args.Name)},
//		}, nil
//	})
//
//	<-ctx.Done() // block until shutdown; the server answers requests in background goroutines
//
// Driving a server from a client over the same kind of transport:
//
//	transport := mcp.NewLineTransport(conn, conn)
//	client := mcp.NewClient(transport, mcp.Implementation{Name: "my-client", Version: "1.0.0"})
//
//	if _, err := client.Initialize(ctx, mcp.ClientCapabilities{}); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.CallTool(ctx, "greet", map[string]string{"name": "Ada"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Content[0].Text)
//
// Watching progress on a long-running call:
//
//	token := mcp.NewProgressToken()
//	events, _ := client.Peer().OnProgress(token)
//	go func() {
//		for ev := range events {
//			fmt.Printf("progress: %.0f\n", ev.Progress)
//		}
//	}()
//	_ = client.Peer().SendRequest(ctx, "tools/call", params, &mcp.Meta{ProgressToken: token}, &result)
//
// Answering server-initiated sampling requests on the client side:
//
//	client.OnCreateMessage(func(ctx context.Context, params mcp.CreateMessageParams) (mcp.CreateMessageResult, error) {
//		return mcp.CreateMessageResult{
//			Role:    "assistant",
//			Content: mcp.TextContent("a generated reply"),
//			Model:   "local-stub",
//		}, nil
//	})
package mcp
