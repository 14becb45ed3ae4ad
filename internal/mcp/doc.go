// Package mcp exposes legislation retrieval and invoice analysis as MCP
// tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// over the stdio transport and calls the analysis pipeline directly. Two
// tools are registered:
//
//   - retrieve_legislation: ranked passages for a category and explicit
//     search terms
//   - analyze_invoice: the full analysis of an invoice given inline or by
//     file path
//
// Tool failures are reported as tool errors (IsError results) carrying the
// retrieval error kind, so clients can tell an empty corpus from a provider
// outage.
package mcp
