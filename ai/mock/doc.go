// Package mock provides test doubles for the ai interfaces.
//
// MockEmbedder returns deterministic unit vectors derived from a hash of the
// text, so identical texts always score 1.0 against each other. Behavior can
// be replaced per test:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service unavailable")
//	}
//
// Every call is recorded; CallCount and Batches expose them for assertions.
package mock
