// Package openai implements ai.Provider with the langchaingo OpenAI client.
//
// Any service that speaks the OpenAI embeddings API works, including Ollama,
// LocalAI and vLLM:
//
//	cfg := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	)
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
package openai
