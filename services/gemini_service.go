package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"fundametrics/types"
)

var once sync.Once

var GEMINI_API_URL = ""
var GEMINI_API_KEY = ""

func init() {
	once.Do(func() {
		GEMINI_API_URL = os.Getenv("GEMINI_API_URL")
		GEMINI_API_KEY = os.Getenv("GEMINI_API_KEY")
	})
}

// GeminiConfigured reports whether the LLM summary path is available.
func GeminiConfigured() bool {
	return GEMINI_API_URL != "" && GEMINI_API_KEY != ""
}

func formatMetricLines(values map[string]types.MetricValue) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var lines []string
	for _, key := range keys {
		metric := values[key]
		if metric.Value == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %.2f %s", key, *metric.Value, metric.Unit))
	}
	return strings.Join(lines, "\n")
}

// GenerateCompanySummary asks Gemini for a short narrative over the
// computed figures. Returns an empty string when the API is not
// configured or the call fails; callers fall back to the rule-based
// summary.
func GenerateCompanySummary(companyName string, metrics, ratios map[string]types.MetricValue) string {
	if !GeminiConfigured() {
		return ""
	}

	prompt := fmt.Sprintf(`You are a financial analysis assistant. Write a neutral two-paragraph
summary of the company below using ONLY the computed figures provided.
Do not invent numbers, do not give investment advice, and do not
speculate beyond the data.

Company: %s

Computed metrics:
%s

Derived ratios:
%s

Return plain text only, no markdown.`, companyName, formatMetricLines(metrics), formatMetricLines(ratios))

	requestData := types.GeminiRequest{
		Contents: []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		}{
			{
				Parts: []struct {
					Text string `json:"text"`
				}{
					{
						Text: prompt,
					},
				},
			},
		},
		GenerationConfig: map[string]interface{}{
			"maxOutputTokens": 2048,
		},
	}
	requestBody, err := json.Marshal(requestData)
	if err != nil {
		return ""
	}

	apiEndpoint := GEMINI_API_URL + "?key=" + GEMINI_API_KEY
	req, err := http.NewRequest("POST", apiEndpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	var rawResponse types.GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResponse); err != nil {
		return ""
	}
	if len(rawResponse.Candidates) == 0 {
		return ""
	}

	content := rawResponse.Candidates[0].Content
	if len(content.Parts) == 0 {
		return ""
	}
	generatedText := content.Parts[0].Text
	cleanedText := strings.TrimPrefix(generatedText, "```")
	cleanedText = strings.TrimSuffix(cleanedText, "```")
	return strings.TrimSpace(cleanedText)
}
