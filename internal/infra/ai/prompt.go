package ai

import (
	"regexp"
	"strings"
)

// analysisSystemPrompt frames the model as a structured extractor.
const analysisSystemPrompt = "You are an AI assistant that analyzes phone call transcripts between a staff member and a customer and returns structured JSON."

const analysisPromptTemplate = `Analyze this phone call transcript between a STAFF member and a CUSTOMER.

SPEAKER IDENTIFICATION RULES:
- If someone greets with the company name, they are STAFF
- The person providing information/solutions is STAFF
- The person asking questions/requesting services is CUSTOMER

TRANSCRIPT:
{{TRANSCRIPT}}

RECORDING CONTEXT (if available):
{{CONTEXT}}

Return JSON with exactly these fields:
{
    "call_type": "inquiry|follow_up|complaint|consultation|support|appointment_booking|status_check|payment_inquiry|callback_request|internal|spam|wrong_number|other",
    "service_category": "Category of service discussed, or Unknown",
    "summary": "2-3 sentence summary: What did CUSTOMER want? How did STAFF help? What was the outcome?",
    "staff_name": "Name of staff member if identifiable, otherwise null",
    "staff_extension": "Extension number if identifiable, otherwise null",
    "customer_name": "Name of customer if mentioned, otherwise null",
    "sentiment": "positive|neutral|negative|mixed",
    "resolution_status": "resolved|pending|escalated|requires_followup|transferred|callback_scheduled|unclear",
    "topics_discussed": ["List of specific topics"],
    "customer_requests": ["Specific requests made by the customer"],
    "action_items": ["Follow-up actions with owner"],
    "key_details": {
        "phone_numbers": ["Any phone numbers mentioned"],
        "amounts_mentioned": ["Any fees or costs with currency"],
        "dates_deadlines": ["Any dates, deadlines, or timeframes"],
        "other_details": ["Any other critical information"]
    }
}

CRITICAL RULES:
1. ONLY include information ACTUALLY said in the transcript, never assume or fabricate
2. If something was not mentioned, use null or an empty array []
3. If a number or name is repeated for confirmation, count it ONCE only
4. Base sentiment on actual tone indicators such as urgency words, politeness, complaints, thanks

Return ONLY valid JSON, no other text.`

// buildAnalysisPrompt fills the template. Named markers instead of fmt verbs
// so transcript content can never collide with a placeholder.
func buildAnalysisPrompt(transcript, recordingContext string) string {
	if recordingContext == "" {
		recordingContext = "No additional context available."
	}
	p := strings.Replace(analysisPromptTemplate, "{{TRANSCRIPT}}", transcript, 1)
	return strings.Replace(p, "{{CONTEXT}}", recordingContext, 1)
}

var extensionPattern = regexp.MustCompile(`-(\d{3})-`)

// RecordingContext derives extension and call-direction hints from a PBX
// recording filename, e.g. "20260101160749-1765454864.23722-201-0556195159-Outbound.wav".
func RecordingContext(recordingFile string) string {
	if recordingFile == "" {
		return ""
	}
	var parts []string
	if m := extensionPattern.FindStringSubmatch(recordingFile); m != nil {
		parts = append(parts, "Extension: "+m[1])
	}
	lower := strings.ToLower(recordingFile)
	switch {
	case strings.Contains(lower, "outbound"):
		parts = append(parts, "Call Direction: Outbound (Staff initiated the call)")
	case strings.Contains(lower, "inbound"):
		parts = append(parts, "Call Direction: Inbound (Customer called in)")
	case strings.Contains(lower, "internal"):
		parts = append(parts, "Call Direction: Internal (Call between staff members)")
	}
	return strings.Join(parts, "\n")
}

// ExtensionFromFile returns the 3-digit extension embedded in the recording
// filename, or "" when none is present.
func ExtensionFromFile(recordingFile string) string {
	if m := extensionPattern.FindStringSubmatch(recordingFile); m != nil {
		return m[1]
	}
	return ""
}
