// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-moneta.
//
// go-moneta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	// Test disabling
	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	// Test enabling
	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordCeremony(t *testing.T) {
	Enable()

	// Reset counters before test
	CeremoniesTotal.Reset()
	CeremonyDuration.Reset()

	// Record a successful registration ceremony
	RecordCeremony(CeremonyRegistration, StatusSuccess, 0.5)

	// Verify counter incremented
	count := testutil.CollectAndCount(CeremoniesTotal)
	if count != 1 {
		t.Errorf("Expected 1 ceremony recorded, got %d", count)
	}

	// Verify histogram updated
	histCount := testutil.CollectAndCount(CeremonyDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", histCount)
	}

	// Record a failed authentication ceremony
	RecordCeremony(CeremonyAuthentication, StatusError, 0.1)

	// Verify counter incremented again
	count = testutil.CollectAndCount(CeremoniesTotal)
	if count != 2 {
		t.Errorf("Expected 2 ceremonies recorded, got %d", count)
	}
}

func TestRecordCeremonyWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	// Reset counters
	CeremoniesTotal.Reset()

	// Record ceremony while disabled
	RecordCeremony(CeremonyRegistration, StatusSuccess, 0.5)

	// Verify nothing was recorded
	count := testutil.CollectAndCount(CeremoniesTotal)
	if count != 0 {
		t.Errorf("Expected 0 ceremonies when disabled, got %d", count)
	}
}

func TestRecordCeremonyFailure(t *testing.T) {
	Enable()

	// Reset counters
	CeremonyFailuresTotal.Reset()

	// Record a failure
	RecordCeremonyFailure(CeremonyAuthentication, ReasonPossibleClone)

	// Verify counter incremented
	count := testutil.CollectAndCount(CeremonyFailuresTotal)
	if count != 1 {
		t.Errorf("Expected 1 failure recorded, got %d", count)
	}

	// Record another failure
	RecordCeremonyFailure(CeremonyRegistration, ReasonChallengeExpired)

	// Verify counter incremented again
	count = testutil.CollectAndCount(CeremonyFailuresTotal)
	if count != 2 {
		t.Errorf("Expected 2 failures recorded, got %d", count)
	}
}

func TestRecordCeremonyFailureWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	// Reset counters
	CeremonyFailuresTotal.Reset()

	// Record failure while disabled
	RecordCeremonyFailure(CeremonyAuthentication, ReasonVerificationFailed)

	// Verify nothing was recorded
	count := testutil.CollectAndCount(CeremonyFailuresTotal)
	if count != 0 {
		t.Errorf("Expected 0 failures when disabled, got %d", count)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	Enable()

	// Reset counters
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	// Record an HTTP request
	RecordHTTPRequest("POST", "200", 0.025)

	// Verify counter incremented
	count := testutil.CollectAndCount(HTTPRequestsTotal)
	if count != 1 {
		t.Errorf("Expected 1 HTTP request recorded, got %d", count)
	}

	// Verify histogram updated
	histCount := testutil.CollectAndCount(HTTPRequestDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", histCount)
	}
}

func TestRecordIdentityCreated(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(IdentitiesCreatedTotal)
	RecordIdentityCreated()
	after := testutil.ToFloat64(IdentitiesCreatedTotal)

	if after != before+1 {
		t.Errorf("Expected identities counter to increase by 1, got %f -> %f", before, after)
	}
}

func TestRecordSessionIssued(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(SessionsIssuedTotal)
	RecordSessionIssued()
	after := testutil.ToFloat64(SessionsIssuedTotal)

	if after != before+1 {
		t.Errorf("Expected sessions counter to increase by 1, got %f -> %f", before, after)
	}
}

func TestSetPendingChallenges(t *testing.T) {
	Enable()

	// Set pending challenge count
	SetPendingChallenges(42)

	value := testutil.ToFloat64(PendingChallenges)
	if value != 42 {
		t.Errorf("Expected pending challenges to be 42, got %f", value)
	}

	// Update the value
	SetPendingChallenges(7)

	value = testutil.ToFloat64(PendingChallenges)
	if value != 7 {
		t.Errorf("Expected pending challenges to be 7, got %f", value)
	}
}

func TestSetPendingChallengesWhenDisabled(t *testing.T) {
	Enable()
	SetPendingChallenges(5)

	Disable()
	defer Enable()

	// Set while disabled should be a no-op
	SetPendingChallenges(99)

	value := testutil.ToFloat64(PendingChallenges)
	if value != 5 {
		t.Errorf("Expected pending challenges to remain 5, got %f", value)
	}
}

func TestActiveConnections(t *testing.T) {
	Enable()

	ActiveConnections.Set(0)

	ActiveConnections.Inc()
	ActiveConnections.Inc()

	value := testutil.ToFloat64(ActiveConnections)
	if value != 2 {
		t.Errorf("Expected 2 active connections, got %f", value)
	}

	ActiveConnections.Dec()

	value = testutil.ToFloat64(ActiveConnections)
	if value != 1 {
		t.Errorf("Expected 1 active connection, got %f", value)
	}
}

func TestCeremonyConstants(t *testing.T) {
	if CeremonyRegistration != "registration" {
		t.Errorf("Expected CeremonyRegistration to be 'registration', got %s", CeremonyRegistration)
	}
	if CeremonyAuthentication != "authentication" {
		t.Errorf("Expected CeremonyAuthentication to be 'authentication', got %s", CeremonyAuthentication)
	}
}

func TestStatusConstants(t *testing.T) {
	if StatusSuccess != "success" {
		t.Errorf("Expected StatusSuccess to be 'success', got %s", StatusSuccess)
	}
	if StatusError != "error" {
		t.Errorf("Expected StatusError to be 'error', got %s", StatusError)
	}
}

func TestReasonConstants(t *testing.T) {
	reasons := map[string]string{
		ReasonChallengeExpired:   "challenge_expired",
		ReasonVerificationFailed: "verification_failed",
		ReasonPossibleClone:      "possible_clone",
		ReasonMalformedResponse:  "malformed_response",
		ReasonStorage:            "storage",
	}
	for got, want := range reasons {
		if got != want {
			t.Errorf("Expected reason constant %s, got %s", want, got)
		}
	}
}

func TestLabelConstants(t *testing.T) {
	labels := map[string]string{
		LabelCeremony:   "ceremony",
		LabelStatus:     "status",
		LabelReason:     "reason",
		LabelMethod:     "method",
		LabelStatusCode: "status_code",
	}
	for got, want := range labels {
		if got != want {
			t.Errorf("Expected label constant %s, got %s", want, got)
		}
	}
}

func TestMetricsNamespace(t *testing.T) {
	if Namespace != "moneta" {
		t.Errorf("Expected namespace to be 'moneta', got %s", Namespace)
	}
}

func TestResourceGauges(t *testing.T) {
	Enable()

	Goroutines.Set(12)
	MemoryAllocBytes.Set(1024)
	MemorySysBytes.Set(4096)
	ServerUptime.Set(60)

	if v := testutil.ToFloat64(Goroutines); v != 12 {
		t.Errorf("Expected 12 goroutines, got %f", v)
	}
	if v := testutil.ToFloat64(MemoryAllocBytes); v != 1024 {
		t.Errorf("Expected 1024 alloc bytes, got %f", v)
	}
	if v := testutil.ToFloat64(MemorySysBytes); v != 4096 {
		t.Errorf("Expected 4096 sys bytes, got %f", v)
	}
	if v := testutil.ToFloat64(ServerUptime); v != 60 {
		t.Errorf("Expected 60s uptime, got %f", v)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	Enable()

	CeremoniesTotal.Reset()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordCeremony(CeremonyAuthentication, StatusSuccess, 0.01)
			}
		}()
	}
	wg.Wait()

	value := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyAuthentication, StatusSuccess))
	if value != 1000 {
		t.Errorf("Expected 1000 ceremonies after concurrent updates, got %f", value)
	}
}
