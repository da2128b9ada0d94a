// Package memory provides per-user long-term semantic memory for a chat
// assistant.
//
// Short-term history lives in the conversation layer. When a message falls
// out of that window its text is embedded and added here; before each
// model call the user's message is used as a query to pull the closest
// older fragments back into the prompt.
//
// Architecture:
//   - Store: one user's fragments (text + embedding), capped FIFO, with a
//     lazily rebuilt similarity index and a .index/.json file pair on disk
//   - Registry: one live Store per user, per-user locking, path mapping;
//     implements Manager
//   - Embedder: text-to-vector conversion (mock, OpenAI, ONNX, cached)
//   - index.Builder: exact flat squared-L2 index (default) or chromem-go
//
// Integration:
//   - AddFragment: text evicted from short-term history
//   - SearchContext: before composing a model prompt
//   - Persist: at the end of every turn (the store never saves itself)
package memory
