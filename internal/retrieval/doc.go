// Package retrieval narrows the legal corpus to an invoice's fiscal
// category and ranks the remaining segments against its query terms.
//
// The flow is Filter, then Builder, then Retriever:
//
//	segments, err := retrieval.NewFilter("general").Apply(snap, fc)
//	idx, err := builder.Build(ctx, segments)
//	passages, err := retriever.Retrieve(ctx, idx, retrieval.QueryFromContext(fc), 5)
//
// IndexCache combines the first two steps and keeps one index per corpus
// snapshot version and category.
//
// Errors match ErrEmptyCorpus, ErrEmbeddingProvider or ErrInvalidQuery
// with errors.Is.
package retrieval
