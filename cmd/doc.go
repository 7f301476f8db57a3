// Package cmd implements the ollama-ctl command tree.
//
// # Architecture
//
//   - root.go: App struct, cobra root command, global flags and the
//     config / resolver / client plumbing every command shares
//   - exitcode.go: mapping from errors to process exit codes
//   - models.go: list-models, show, delete, pull, push
//   - generate.go: run and embed
//   - chat.go: the interactive chat REPL (ChatSession)
//   - hosts.go: health, hosts, resolve, init-config
//
// # Key Components
//
// ## App
//
// The App struct holds the global flags. Commands call app.client(), which
// loads the config file, optionally discovers MCP tool configs, resolves a
// single endpoint and builds an api.Client for it. Nothing is cached across
// invocations.
//
// ## ChatSession
//
// Manages an interactive chat:
//   - Conversation history kept in memory
//   - Slash commands (/model, /clear, /help, /exit)
//   - Ctrl+C cancels only the response in progress
//
// When stdin is not a terminal the session reads one message per line,
// which makes chat scriptable.
//
// # Usage
//
//	func main() {
//	    cmd.Execute()
//	}
package cmd
