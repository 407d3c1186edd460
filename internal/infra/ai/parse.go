package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"pbx-call-insights/internal/domain/ports/adapter"
)

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
	controlCharRe   = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
)

// ParseAnalysis extracts a CallAnalysis from raw LLM output. The model is
// asked for bare JSON but often wraps it in prose or markdown fences, so the
// parser takes the outermost brace pair, repairs trailing commas and control
// characters, and falls back to per-field regex extraction when the payload
// still will not decode.
func ParseAnalysis(response string) (*adapter.CallAnalysis, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		jsonStr := response[start : end+1]
		jsonStr = trailingCommaRe.ReplaceAllString(jsonStr, "$1")
		jsonStr = controlCharRe.ReplaceAllString(jsonStr, "")

		var out adapter.CallAnalysis
		if err := json.Unmarshal([]byte(jsonStr), &out); err == nil {
			return &out, nil
		}
	}
	return extractFields(response)
}

var (
	stringFieldRe = map[string]*regexp.Regexp{
		"call_type":         regexp.MustCompile(`"call_type"\s*:\s*"([^"]*)"`),
		"service_category":  regexp.MustCompile(`"service_category"\s*:\s*"([^"]*)"`),
		"summary":           regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`),
		"staff_name":        regexp.MustCompile(`"staff_name"\s*:\s*"([^"]*)"`),
		"staff_extension":   regexp.MustCompile(`"staff_extension"\s*:\s*"([^"]*)"`),
		"customer_name":     regexp.MustCompile(`"customer_name"\s*:\s*"([^"]*)"`),
		"sentiment":         regexp.MustCompile(`"sentiment"\s*:\s*"([^"]*)"`),
		"resolution_status": regexp.MustCompile(`"resolution_status"\s*:\s*"([^"]*)"`),
	}
	arrayFieldRe = map[string]*regexp.Regexp{
		"topics_discussed":  regexp.MustCompile(`(?s)"topics_discussed"\s*:\s*\[(.*?)\]`),
		"customer_requests": regexp.MustCompile(`(?s)"customer_requests"\s*:\s*\[(.*?)\]`),
		"action_items":      regexp.MustCompile(`(?s)"action_items"\s*:\s*\[(.*?)\]`),
	}
	quotedItemRe = regexp.MustCompile(`"([^"]*)"`)
)

func extractFields(response string) (*adapter.CallAnalysis, error) {
	out := &adapter.CallAnalysis{}
	found := false

	get := func(field string) string {
		m := stringFieldRe[field].FindStringSubmatch(response)
		if m == nil {
			return ""
		}
		v := strings.ReplaceAll(m[1], `\"`, `"`)
		v = strings.ReplaceAll(v, `\n`, " ")
		if low := strings.ToLower(v); low == "null" || low == "none" {
			return ""
		}
		found = true
		return v
	}

	out.CallType = get("call_type")
	out.ServiceCategory = get("service_category")
	out.Summary = get("summary")
	out.StaffName = get("staff_name")
	out.StaffExtension = get("staff_extension")
	out.CustomerName = get("customer_name")
	out.Sentiment = get("sentiment")
	out.ResolutionStatus = get("resolution_status")

	arrays := map[string]*[]string{
		"topics_discussed":  &out.TopicsDiscussed,
		"customer_requests": &out.CustomerRequests,
		"action_items":      &out.ActionItems,
	}
	for field, dst := range arrays {
		m := arrayFieldRe[field].FindStringSubmatch(response)
		if m == nil {
			continue
		}
		for _, item := range quotedItemRe.FindAllStringSubmatch(m[1], -1) {
			*dst = append(*dst, item[1])
		}
		if len(*dst) > 0 {
			found = true
		}
	}

	if !found {
		return nil, errors.New("no analysis fields found in response")
	}
	if out.Summary == "" {
		out.Summary = "Summary could not be parsed from AI response"
	}
	return out, nil
}
