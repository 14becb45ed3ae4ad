// Package embeddings turns legal text and query terms into vectors.
//
// Four providers are available behind the Provider interface: FastEmbed
// (local ONNX models, cgo builds only), TEI (a text-embeddings-inference
// server over HTTP), Gemini (google.golang.org/genai) and a hashing
// provider that needs no model at all. NewProvider selects one from
// configuration.
//
// Providers do not cache. Vectors for corpus segments are cached on the
// segments themselves by the corpus package.
package embeddings
