// Package api is the protocol client for an Ollama-compatible backend.
//
// # Architecture
//
//   - client.go: Client, its options and every backend operation
//   - stream.go: Stream, a lazy pull-iterator over NDJSON responses
//   - events.go: the tagged events a Stream yields
//   - types.go: request and response bodies
//   - errors.go: the error taxonomy (Kind, Reason, Error)
//   - retry.go: backoff for non-streaming calls
//
// # Usage
//
//	d, _ := resolver.Resolve(in)
//	client := api.NewClient(d)
//	models, err := client.ListModels(ctx)
//
// Streaming operations (Generate, Chat, Pull, Push) return once response
// headers arrive. Lines are read and decoded one at a time as the caller
// advances the Stream, so abandoning it early and calling Close never
// downloads the rest of the response.
//
//	s, err := client.Generate(ctx, api.GenerateRequest{Model: "llama3", Prompt: "hi"})
//	if err != nil {
//	    return err
//	}
//	for ev := range s.All() {
//	    if chunk, ok := ev.(api.GenerateChunk); ok {
//	        fmt.Print(chunk.Response)
//	    }
//	}
//
// # Errors
//
// Every failure is an *Error whose Kind maps to a process exit code in the
// cmd package. Only non-streaming calls are retried, and only when the
// backend refused the connection or timed out.
package api
