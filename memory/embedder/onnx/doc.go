// Package onnx embeds text locally with a sentence-transformer model
// exported to ONNX (all-MiniLM-L6-v2 by default).
//
// The embedder needs libonnxruntime and is only compiled with -tags onnx.
// The tokenizer and pooling are plain Go and always built.
package onnx
