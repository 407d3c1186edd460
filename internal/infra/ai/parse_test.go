//go:build !integration

package ai

import (
	"testing"
)

func TestParseAnalysisCleanJSON(t *testing.T) {
	response := `{
		"call_type": "inquiry",
		"service_category": "Billing",
		"summary": "Customer asked about an invoice. Staff explained the charges.",
		"staff_name": "Joanna",
		"staff_extension": "202",
		"customer_name": "Ahmed",
		"sentiment": "positive",
		"resolution_status": "resolved",
		"topics_discussed": ["invoice charges", "payment methods"],
		"customer_requests": ["explain invoice line items"],
		"action_items": ["staff to email receipt"],
		"key_details": {"amounts_mentioned": ["AED 500"]}
	}`

	got, err := ParseAnalysis(response)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if got.CallType != "inquiry" || got.Sentiment != "positive" {
		t.Errorf("unexpected fields: %+v", got)
	}
	if len(got.TopicsDiscussed) != 2 {
		t.Errorf("topics = %v", got.TopicsDiscussed)
	}
	if got.KeyDetails == nil {
		t.Error("key_details not decoded")
	}
}

func TestParseAnalysisWrappedInProse(t *testing.T) {
	response := "Here is the analysis you requested:\n```json\n" +
		`{"call_type": "support", "summary": "Customer needed help.", "sentiment": "neutral",}` +
		"\n```\nLet me know if you need anything else."

	got, err := ParseAnalysis(response)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if got.CallType != "support" {
		t.Errorf("call_type = %q, want support", got.CallType)
	}
	if got.Sentiment != "neutral" {
		t.Errorf("sentiment = %q, want neutral", got.Sentiment)
	}
}

func TestParseAnalysisRegexFallback(t *testing.T) {
	// Broken JSON that cannot be repaired: unbalanced quotes in the middle.
	response := `{"call_type": "complaint", "summary": "Line was "noisy" and dropped", "sentiment": "negative", "topics_discussed": ["call quality"]`

	got, err := ParseAnalysis(response)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if got.CallType != "complaint" {
		t.Errorf("call_type = %q, want complaint", got.CallType)
	}
	if got.Sentiment != "negative" {
		t.Errorf("sentiment = %q, want negative", got.Sentiment)
	}
	if len(got.TopicsDiscussed) != 1 || got.TopicsDiscussed[0] != "call quality" {
		t.Errorf("topics = %v", got.TopicsDiscussed)
	}
}

func TestParseAnalysisNullNames(t *testing.T) {
	response := `not json at all "staff_name": "null" "customer_name": "None" "call_type": "other"`
	got, err := ParseAnalysis(response)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if got.StaffName != "" || got.CustomerName != "" {
		t.Errorf("null-ish names should be dropped: %+v", got)
	}
}

func TestParseAnalysisGarbage(t *testing.T) {
	if _, err := ParseAnalysis("I could not process this request."); err == nil {
		t.Fatal("expected error for unusable response")
	}
}
