// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/buddy/internal/metrics"
	"github.com/kraklabs/buddy/internal/output"
	buddytest "github.com/kraklabs/buddy/internal/testing"
	"github.com/kraklabs/buddy/pkg/buddy"
	"github.com/kraklabs/buddy/pkg/llm"
)

// upstreamHandler wires the full stack to a fake OpenAI-compatible host.
func upstreamHandler(t *testing.T, mode buddy.StructuredMode, replies ...buddytest.Reply) (http.Handler, *buddytest.FakeUpstream) {
	t.Helper()
	up := buddytest.SetupFakeUpstream(t, replies...)
	gw, err := llm.NewGateway(llm.GatewayConfig{
		Selector:   llm.ProviderGroq,
		Groq:       llm.Endpoint{BaseURL: up.URL, APIKey: "test-key"},
		MaxRetries: -1,
	})
	require.NoError(t, err)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	inv := buddy.NewInvoker(gw, buddy.WithStructuredMode(mode), buddy.WithInvokerRecorder(m))
	svc := buddy.NewService(inv, buddy.WithRecorder(m))
	return New(svc, DefaultConfig(), WithMetrics(m)).Handler(), up
}

func TestUpstream_UnknotRepair(t *testing.T) {
	h, up := upstreamHandler(t, buddy.StructuredJSONObject,
		buddytest.Text("Sure! Here is your chart:\nA --> B"),
		buddytest.Text("graph TD; A[Quit job]-->B[Fear]"),
	)

	rec := do(t, h, http.MethodPost, "/unknot", `{"thoughts": "quit job, fear"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "graph TD; A[Quit job]-->B[Fear]", decodeBody[buddy.UnknotResult](t, rec).Mermaid)

	reqs := up.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, llm.GroqModel, reqs[0].Model)
	assert.Equal(t, "Bearer test-key", reqs[0].Authorization)
	assert.Equal(t, 400, reqs[0].MaxTokens)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Contains(t, last.Content, "Sure! Here is your chart:")

	text := do(t, h, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, text, `buddy_diagram_repairs_total{outcome="repaired"} 1`)
	assert.Contains(t, text, `buddy_completions_total{outcome="ok",purpose="repair"} 1`)
}

func TestUpstream_StructuredModes(t *testing.T) {
	doc := buddytest.Text(`{"recommendations": [
		{"type": "video", "title": "a", "query": "a"},
		{"type": "book", "title": "b", "query": "b"},
		{"type": "movie", "title": "c", "query": "c"}
	]}`)

	t.Run("json_object", func(t *testing.T) {
		h, up := upstreamHandler(t, buddy.StructuredJSONObject, doc)
		rec := do(t, h, http.MethodPost, "/recommend", `{"history": [{"role": "user", "text": "tired"}]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[buddy.RecommendResult](t, rec).Recommendations, 3)
		assert.JSONEq(t, `{"type": "json_object"}`, string(up.Requests()[0].ResponseFormat))
	})

	t.Run("json_schema", func(t *testing.T) {
		h, up := upstreamHandler(t, buddy.StructuredJSONSchema, doc)
		rec := do(t, h, http.MethodPost, "/recommend", `{"history": [{"role": "user", "text": "tired"}]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		format := string(up.Requests()[0].ResponseFormat)
		assert.Contains(t, format, `"type":"json_schema"`)
		assert.Contains(t, format, `"name":"recommendations"`)
		assert.Contains(t, format, `"strict":true`)
	})
}

func TestUpstream_Failures(t *testing.T) {
	t.Run("upstream error is not leaked", func(t *testing.T) {
		h, up := upstreamHandler(t, buddy.StructuredJSONObject,
			buddytest.Status(http.StatusUnauthorized, `{"error": {"message": "invalid api key gsk_123"}}`))

		rec := do(t, h, http.MethodPost, "/chat", `{"message": "hi"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "gsk_123")
		assert.Equal(t, buddy.CodeCompletionFailed, decodeBody[output.ErrorJSON](t, rec).Code)
		assert.Equal(t, 1, up.Hits())
	})

	t.Run("diagram falls back when the repair call fails", func(t *testing.T) {
		h, up := upstreamHandler(t, buddy.StructuredJSONObject,
			buddytest.Text("not a graph"),
			buddytest.Status(http.StatusBadRequest, `{"error": {"message": "bad"}}`))

		rec := do(t, h, http.MethodPost, "/unknot", `{"thoughts": "x"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, buddy.FallbackDiagram, decodeBody[buddy.UnknotResult](t, rec).Mermaid)
		assert.Equal(t, 2, up.Hits())
	})

	t.Run("malformed narrative", func(t *testing.T) {
		h, _ := upstreamHandler(t, buddy.StructuredJSONObject, buddytest.Text(`{"story_text": ""}`))

		rec := do(t, h, http.MethodPost, "/simulation", `{"story_id": "nova-1", "turn_count": 2, "last_choice": "Open it"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, buddy.CodeMalformedOutput, decodeBody[output.ErrorJSON](t, rec).Code)
	})
}
