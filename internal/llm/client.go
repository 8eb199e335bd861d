// Package llm adapts a local LLM HTTP API for coordinate inference and
// prompt analysis. The engine never assumes the LLM is reachable: a nil
// *Client is a valid "no LLM configured" state and every call site handles
// absence.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"imagery-engine/internal/geocode"
)

// Client talks to an Ollama-compatible generate endpoint.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates an LLM client. Empty arguments fall back to local defaults.
func New(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *Client) generate(ctx context.Context, prompt, format string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("no LLM configured")
	}
	reqBody := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: format,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling LLM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return genResp.Response, nil
}

var coordsRe = regexp.MustCompile(`([-+]?\d*\.\d+|[-+]?\d+)\s*,\s*([-+]?\d*\.\d+|[-+]?\d+)`)

// InferCoordinates asks the model for coordinates of a place name. The date
// context, when present, disambiguates places whose relevance is temporal
// (e.g. event sites). A model answer of "none" reports not found.
func (c *Client) InferCoordinates(ctx context.Context, location, dateContext string) (geocode.Coordinates, bool, error) {
	prompt := fmt.Sprintf(
		"What are the latitude and longitude coordinates for: %s%s? "+
			"Return only the numbers, comma-separated (e.g. 34.0522,-118.2437) or None if unknown.",
		location, dateContext)

	response, err := c.generate(ctx, prompt, "")
	if err != nil {
		return geocode.Coordinates{}, false, err
	}

	match := coordsRe.FindStringSubmatch(response)
	if match == nil {
		if strings.Contains(strings.ToLower(response), "none") {
			log.Printf("[LLM] No coordinates known for %q", location)
			return geocode.Coordinates{}, false, nil
		}
		return geocode.Coordinates{}, false, fmt.Errorf("unparseable coordinate response: %q", response)
	}

	lat, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return geocode.Coordinates{}, false, fmt.Errorf("bad latitude in %q: %w", response, err)
	}
	lon, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return geocode.Coordinates{}, false, fmt.Errorf("bad longitude in %q: %w", response, err)
	}
	return geocode.Coordinates{Lat: lat, Lon: lon}, true, nil
}

// PromptAnalysis is the structured result of free-text prompt analysis.
// Fields mirror an analysis request; zero values mean "not mentioned".
type PromptAnalysis struct {
	Location       string   `json:"location"`
	ProcessingType string   `json:"processing_type"`
	Satellite      string   `json:"satellite"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	Year           int      `json:"year"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

// AnalyzePrompt extracts structured request fields from a natural-language
// geographic prompt.
func (c *Client) AnalyzePrompt(ctx context.Context, prompt string) (*PromptAnalysis, error) {
	instruction := fmt.Sprintf(
		"Extract mapping request fields from this prompt: %q. "+
			"Respond with JSON only, keys: location, processing_type "+
			"(one of RGB, NDVI, SURFACE_WATER, LULC, LST, OPEN_BUILDINGS, NDSI, NIGHT_LIGHTS), "+
			"satellite, start_date, end_date, year, latitude, longitude. "+
			"Use null for anything not mentioned.", prompt)

	response, err := c.generate(ctx, instruction, "json")
	if err != nil {
		return nil, err
	}

	var analysis PromptAnalysis
	if err := json.Unmarshal([]byte(response), &analysis); err != nil {
		return nil, fmt.Errorf("decoding prompt analysis %q: %w", response, err)
	}
	if analysis.Location == "" && analysis.Latitude == nil {
		return nil, fmt.Errorf("prompt analysis yielded no location")
	}
	return &analysis, nil
}
