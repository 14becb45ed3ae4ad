// Package extraction classifies an invoice into a fiscal.Context: the tax
// category that selects corpus segments and the short and long search
// phrases the retriever embeds.
//
// # Extractors
//
//   - HeuristicExtractor: weighted regex rules over the invoice XML or
//     text. The highest weighted matching rule picks the category; terms
//     come from the rule, the product descriptions (xProd) and the product
//     segments detected in them.
//   - LLMExtractor: asks the generative model for a JSON object
//     {category, short_terms, long_terms} and unwraps the reply tolerantly.
//   - FallbackExtractor: tries extractors in order and returns the first
//     usable context.
//
// New assembles the configured chain. Without a model client the chain is
// the heuristic extractor alone.
//
// # Usage
//
//	ext, err := extraction.New(extraction.DefaultConfig(), client, logger)
//	if err != nil {
//	    return err
//	}
//	fc, err := ext.Extract(ctx, invoiceXML)
package extraction
