package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockUpstreamTransport returns pre-recorded data streams without network calls.
type mockUpstreamTransport struct {
	responseBody   string
	responseStatus int
}

func (m *mockUpstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
	return &http.Response{
		StatusCode: m.responseStatus,
		Body:       io.NopCloser(strings.NewReader(m.responseBody)),
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Request:    req,
	}, nil
}

// benchTurn represents a single request-response cycle from test fixtures.
type benchTurn struct {
	OpenAIRequest  json.RawMessage `json:"openaiRequest"`
	UpstreamStream []string        `json:"upstreamStream"`
}

// loadBenchFixture loads a recorded data stream fixture and returns the OpenAI request
// body and the upstream stream. When buffered is set the request asks for a single
// JSON response instead of a stream.
func loadBenchFixture(b *testing.B, name string, buffered bool) (openaiReq string, upstreamStream string) {
	b.Helper()

	path := filepath.Join("..", "openaiadapter", "datastream", "testdata", "streaming", name)
	data, err := os.ReadFile(path)
	if err != nil {
		b.Fatalf("Failed to read fixture %s: %v", name, err)
	}

	var turns []benchTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		b.Fatalf("Failed to parse fixture %s: %v", name, err)
	}

	if len(turns) == 0 {
		b.Fatalf("No turns in fixture %s", name)
	}

	turn := turns[0]
	openaiReq = string(turn.OpenAIRequest)
	if buffered {
		openaiReq = strings.Replace(openaiReq, `"stream":true`, `"stream":false`, 1)
	}
	upstreamStream = strings.Join(turn.UpstreamStream, "\n") + "\n"
	return openaiReq, upstreamStream
}

// setupProxyWithMockTransport creates a Proxy with full middleware stack but mocked upstream.
// Suppresses logging to isolate benchmark measurements from I/O overhead.
func setupProxyWithMockTransport(b *testing.B, transport http.RoundTripper) *Proxy {
	b.Helper()

	slog.SetDefault(slog.New(slog.DiscardHandler))

	proxy, err := New(testConfig(), staticReadiness(true),
		WithTransport(transport),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		b.Fatalf("Failed to create proxy: %v", err)
	}

	return proxy
}

// consumeSSEStream drains the response body to measure proxy throughput.
// Uses raw byte copy instead of SSE parsing to isolate proxy performance from client overhead.
func consumeSSEStream(b *testing.B, body io.Reader) {
	b.Helper()

	_, err := io.Copy(io.Discard, body)
	if err != nil {
		b.Fatalf("Stream read error: %v", err)
	}
}

var benchScenarios = []struct {
	name        string
	fixtureName string
}{
	{name: "text", fixtureName: "text_stream.json"},
	{name: "tool_use", fixtureName: "tool_use_stream.json"},
	{name: "mixed_content", fixtureName: "mixed_content_stream.json"},
}

// BenchmarkProxyStreaming measures end-to-end streaming latency through the
// OpenAI compatibility layer. Includes routing, middleware, handler, transcoding
// and SSE encoding. Excludes network latency (mocked transport).
func BenchmarkProxyStreaming(b *testing.B) {
	for _, s := range benchScenarios {
		openaiReq, upstreamStream := loadBenchFixture(b, s.fixtureName, false)

		b.Run(s.name, func(b *testing.B) {
			mockTransport := &mockUpstreamTransport{
				responseBody:   upstreamStream,
				responseStatus: http.StatusOK,
			}

			proxy := setupProxyWithMockTransport(b, mockTransport)
			server := httptest.NewServer(proxy)
			defer server.Close()

			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				resp, err := http.Post(
					server.URL+"/v1/chat/completions",
					"application/json",
					strings.NewReader(openaiReq),
				)
				if err != nil {
					b.Fatalf("Request failed: %v", err)
				}

				if resp.StatusCode != http.StatusOK {
					b.Fatalf("Unexpected status code: %d", resp.StatusCode)
				}

				consumeSSEStream(b, resp.Body)
				_ = resp.Body.Close()
			}
		})
	}
}

// BenchmarkProxyNonStreaming measures end-to-end buffered response latency.
// Provides baseline comparison against streaming benchmarks to isolate SSE overhead.
func BenchmarkProxyNonStreaming(b *testing.B) {
	for _, s := range benchScenarios {
		openaiReq, upstreamStream := loadBenchFixture(b, s.fixtureName, true)

		b.Run(s.name, func(b *testing.B) {
			mockTransport := &mockUpstreamTransport{
				responseBody:   upstreamStream,
				responseStatus: http.StatusOK,
			}

			proxy := setupProxyWithMockTransport(b, mockTransport)
			server := httptest.NewServer(proxy)
			defer server.Close()

			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				resp, err := http.Post(
					server.URL+"/v1/chat/completions",
					"application/json",
					strings.NewReader(openaiReq),
				)
				if err != nil {
					b.Fatalf("Request failed: %v", err)
				}

				if resp.StatusCode != http.StatusOK {
					b.Fatalf("Unexpected status code: %d", resp.StatusCode)
				}

				_, err = io.Copy(io.Discard, resp.Body)
				if err != nil {
					b.Fatalf("Failed to read response: %v", err)
				}
				_ = resp.Body.Close()
			}
		})
	}
}

// BenchmarkProxyStreaming_TTFB measures Time-To-First-Byte for streaming responses.
// Headers are flushed before the first upstream chunk is read, so this mostly
// measures request handling up to the upstream call.
func BenchmarkProxyStreaming_TTFB(b *testing.B) {
	openaiReq, upstreamStream := loadBenchFixture(b, "text_stream.json", false)

	mockTransport := &mockUpstreamTransport{
		responseBody:   upstreamStream,
		responseStatus: http.StatusOK,
	}

	proxy := setupProxyWithMockTransport(b, mockTransport)
	server := httptest.NewServer(proxy)
	defer server.Close()

	b.ReportAllocs()
	b.ResetTimer()

	var totalTTFB time.Duration
	var iterations int
	buf := make([]byte, 1)

	for b.Loop() {
		start := time.Now()

		resp, err := http.Post(
			server.URL+"/v1/chat/completions",
			"application/json",
			strings.NewReader(openaiReq),
		)
		if err != nil {
			b.Fatalf("Request failed: %v", err)
		}

		// Read first byte to measure TTFB
		_, err = resp.Body.Read(buf)
		if err != nil {
			b.Fatalf("Failed to read first byte: %v", err)
		}

		ttfb := time.Since(start)
		totalTTFB += ttfb
		iterations++

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	avgTTFB := totalTTFB / time.Duration(iterations)
	b.ReportMetric(float64(avgTTFB.Microseconds()), "µs/ttfb")
}

// BenchmarkProxyConcurrentThroughput_Streaming measures concurrent streaming throughput
// using b.RunParallel to simulate realistic concurrent load.
func BenchmarkProxyConcurrentThroughput_Streaming(b *testing.B) {
	openaiReq, upstreamStream := loadBenchFixture(b, "tool_use_stream.json", false)

	mockTransport := &mockUpstreamTransport{
		responseBody:   upstreamStream,
		responseStatus: http.StatusOK,
	}

	proxy := setupProxyWithMockTransport(b, mockTransport)
	server := httptest.NewServer(proxy)
	defer server.Close()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resp, err := http.Post(
				server.URL+"/v1/chat/completions",
				"application/json",
				strings.NewReader(openaiReq),
			)
			if err != nil {
				b.Fatalf("Request failed: %v", err)
			}

			if resp.StatusCode != http.StatusOK {
				b.Fatalf("Unexpected status code: %d", resp.StatusCode)
			}

			consumeSSEStream(b, resp.Body)
			_ = resp.Body.Close()
		}
	})
}
