// Package docchat provides an in-process Go client for conversational question answering
// over documents: upload files into a session, then ask follow-up questions about them.
//
// The caller supplies the two external models. Everything else (text extraction, chunking,
// the in-memory vector index, retrieval and history) runs inside the client.
//
//	client, _ := docchat.New(ctx,
//	    docchat.WithEmbedder(myEmbedder),
//	    docchat.WithLanguageModel(myLLM),
//	)
//	defer client.Close()
//
//	id, _ := client.CreateSession(ctx)
//	_, _ = client.Ingest(ctx, id, []docchat.Document{{Name: "report.pdf", Data: pdfBytes}})
//	ans, _ := client.Ask(ctx, id, "What were the main findings?")
//	ans, _ = client.Ask(ctx, id, "And how were they measured?")
//	fmt.Println(ans.Text, len(ans.History)) // 4 messages
//
// An optional Redis or Valkey cache (WithCache) stores chunk embeddings so that
// re-ingesting the same documents does not call the embedding provider again.
package docchat
