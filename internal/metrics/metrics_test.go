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

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/buddy/pkg/buddy"
)

var _ buddy.Recorder = (*Metrics)(nil)

func TestRecordCompletion(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordCompletion("chat", buddy.OutcomeOK, 120*time.Millisecond)
	m.RecordCompletion("chat", buddy.OutcomeOK, 80*time.Millisecond)
	m.RecordCompletion("diagram", buddy.OutcomeFailed, time.Second)
	m.RecordCompletion("chat", buddy.OutcomeUnavailable, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.completions.WithLabelValues("chat", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("diagram", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("chat", "unavailable")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.completionDuration))
}

func TestRecordShaping(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordRepair("repaired")
	m.RecordRepair("fallback")
	m.RecordRepair("fallback")
	m.RecordMalformed("recommend")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.diagramRepairs.WithLabelValues("repaired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.diagramRepairs.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.malformed.WithLabelValues("recommend")))
}

func TestHTTPMetrics(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	done := m.InFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))

	m.RecordHTTPRequest("POST /chat", 200, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST /chat", "200")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordCompletion("chat", buddy.OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `buddy_completions_total{outcome="ok",purpose="chat"} 1`)
	assert.Contains(t, string(body), "buddy_uptime_seconds")
	assert.Contains(t, string(body), "go_goroutines")
}
