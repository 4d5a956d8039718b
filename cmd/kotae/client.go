package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kotaehq/kotae/internal/models"
)

const defaultServerURL = "http://localhost:8080"

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// callAPI performs req, unwraps the envelope, and decodes data into out.
// out may be nil when the caller only cares about success.
func callAPI(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("server returned %d with unreadable body", resp.StatusCode)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("%s", env.Error.Message)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func postJSON(serverURL, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return callAPI(req, out)
}

func getJSON(serverURL, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, serverURL+path, nil)
	if err != nil {
		return err
	}
	return callAPI(req, out)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	chunkSize := fs.Int("chunk-size", 0, "chunk size override in characters (0 = server default)")
	chunkOverlap := fs.Int("chunk-overlap", 0, "chunk overlap override in characters (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fail("Usage: kotae ingest [flags] <file> [file...]")
	}

	for _, path := range fs.Args() {
		result, err := uploadFile(*serverURL, path, *chunkSize, *chunkOverlap)
		if err != nil {
			fail("Ingest %s failed: %v", path, err)
		}
		if *outputFormat == "json" {
			printJSON(result)
			continue
		}
		fmt.Printf("Ingested %s\n", result.Filename)
		fmt.Printf("  document_id: %s\n", result.DocumentID)
		fmt.Printf("  chunks:      %d (%d chars, %s)\n",
			result.ChunkCount, result.CharacterCount, result.ProcessingTime)
	}
}

func uploadFile(serverURL, path string, chunkSize, chunkOverlap int) (*models.IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if chunkSize > 0 {
		_ = w.WriteField("chunk_size", fmt.Sprintf("%d", chunkSize))
	}
	if chunkOverlap > 0 {
		_ = w.WriteField("chunk_overlap", fmt.Sprintf("%d", chunkOverlap))
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/documents/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result models.IngestResult
	if err := callAPI(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	topK := fs.Int("top-k", 5, "number of passages to retrieve")
	documentID := fs.String("document", "", "restrict retrieval to one document ID")
	rerank := fs.Bool("rerank", false, "rerank retrieved passages with hybrid scoring")
	verify := fs.Bool("verify", false, "verify the answer's claims against the passages")
	skipCache := fs.Bool("no-cache", false, "bypass the query cache")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	question := joinArgs(fs.Args())
	if question == "" {
		fail("Usage: kotae query [flags] <question>")
	}

	reqBody := &models.QueryRequest{
		Query:      question,
		TopK:       *topK,
		DocumentID: *documentID,
		Rerank:     *rerank,
		Verify:     *verify,
		SkipCache:  *skipCache,
	}
	var response models.QueryResponse
	if err := postJSON(*serverURL, "/api/query", reqBody, &response); err != nil {
		fail("Query failed: %v", err)
	}

	if *outputFormat == "json" {
		printJSON(&response)
		return
	}
	fmt.Println(response.Answer)
	fmt.Println()
	if response.Confidence.Score != nil {
		fmt.Printf("Confidence: %d/10 (%s)", *response.Confidence.Score, response.Confidence.Level)
		if response.Confidence.Reason != "" {
			fmt.Printf(" - %s", response.Confidence.Reason)
		}
		fmt.Println()
	}
	if len(response.Sources) > 0 {
		fmt.Println("Sources:")
		for i, s := range response.Sources {
			fmt.Printf("  %d. %s (chunk %d, score %.3f)\n",
				i+1, s.Filename, s.ChunkIndex, s.SimilarityScore)
		}
	}
	if response.Verification != nil {
		v := response.Verification
		fmt.Printf("Verification: %d/10", v.OverallScore)
		if len(v.UnsupportedClaims) > 0 {
			fmt.Printf(", %d unsupported claim(s)", len(v.UnsupportedClaims))
		}
		fmt.Println()
		if v.Summary != "" {
			fmt.Printf("  %s\n", v.Summary)
		}
	}
	if response.Cached {
		fmt.Println("(cached)")
	}
}

func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	topic := fs.String("topic", "", "comparison topic (required)")
	topK := fs.Int("top-k", 5, "passages to retrieve per document")
	structured := fs.Bool("structured", false, "request a structured JSON comparison")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 2 || *topic == "" {
		fail("Usage: kotae compare -topic <topic> [flags] <doc-id-1> <doc-id-2>")
	}

	reqBody := &models.CompareRequest{
		DocumentIDs: fs.Args(),
		Topic:       *topic,
		TopK:        *topK,
		Structured:  *structured,
	}
	var result models.CompareResult
	if err := postJSON(*serverURL, "/api/compare", reqBody, &result); err != nil {
		fail("Compare failed: %v", err)
	}

	if *outputFormat == "json" || result.Structured {
		printJSON(&result)
		return
	}
	fmt.Println(result.Comparison)
	fmt.Printf("\nCompared %s (%s retrieved chunks: %d vs %d)\n",
		strings.Join(result.DocumentsCompared, " and "),
		result.ProcessingTime, len(result.Doc1Sources), len(result.Doc2Sources))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fail("Usage: kotae delete [flags] <document-id>")
	}
	for _, id := range fs.Args() {
		req, err := http.NewRequest(http.MethodDelete,
			*serverURL+"/api/documents/"+url.PathEscape(id), nil)
		if err != nil {
			fail("Delete failed: %v", err)
		}
		if err := callAPI(req, nil); err != nil {
			fail("Delete %s failed: %v", id, err)
		}
		fmt.Printf("Deleted %s\n", id)
	}
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var listing struct {
		Documents []*models.Document `json:"documents"`
		Count     int                `json:"count"`
	}
	if err := getJSON(*serverURL, "/api/documents", &listing); err != nil {
		fail("List failed: %v", err)
	}

	if *outputFormat == "json" {
		printJSON(&listing)
		return
	}
	if listing.Count == 0 {
		fmt.Println("No documents ingested.")
		return
	}
	for _, d := range listing.Documents {
		fmt.Printf("%s  %-30s  %4d chunks  %s\n",
			d.ID, d.Filename, d.ChunkCount, d.UploadedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("%d document(s)\n", listing.Count)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var stats models.Stats
	if err := getJSON(*serverURL, "/api/documents/stats", &stats); err != nil {
		fail("Status failed: %v", err)
	}

	if *outputFormat == "json" {
		printJSON(&stats)
		return
	}
	fmt.Printf("Documents: %d\n", stats.TotalDocuments)
	fmt.Printf("Chunks:    %d\n", stats.TotalChunks)
	fmt.Printf("Caches:    %d embeddings, %d queries, %d documents\n",
		stats.Cache.Embeddings, stats.Cache.Queries, stats.Cache.Documents)
}
