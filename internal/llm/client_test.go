package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func generateServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": response,
			"done":     true,
		})
	}))
}

func TestInferCoordinates(t *testing.T) {
	server := generateServer(t, "48.8566,2.3522")
	defer server.Close()

	client := New(server.URL, "test-model")
	coords, found, err := client.InferCoordinates(context.Background(), "Paris, France", "")
	if err != nil {
		t.Fatalf("InferCoordinates failed: %v", err)
	}
	if !found {
		t.Fatal("expected coordinates to be found")
	}
	if coords.Lat != 48.8566 || coords.Lon != 2.3522 {
		t.Errorf("coords = %v", coords)
	}
}

func TestInferCoordinatesProse(t *testing.T) {
	server := generateServer(t, "The coordinates are 34.0522, -118.2437 approximately.")
	defer server.Close()

	client := New(server.URL, "test-model")
	coords, found, err := client.InferCoordinates(context.Background(), "Los Angeles", "")
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if coords.Lon != -118.2437 {
		t.Errorf("lon = %f, want -118.2437", coords.Lon)
	}
}

func TestInferCoordinatesNone(t *testing.T) {
	server := generateServer(t, "None")
	defer server.Close()

	client := New(server.URL, "test-model")
	_, found, err := client.InferCoordinates(context.Background(), "Atlantis", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected not found for None response")
	}
}

func TestInferCoordinatesGarbage(t *testing.T) {
	server := generateServer(t, "I cannot help with that")
	defer server.Close()

	client := New(server.URL, "test-model")
	_, _, err := client.InferCoordinates(context.Background(), "somewhere", "")
	if err == nil {
		t.Error("expected error for unparseable response")
	}
}

func TestAnalyzePrompt(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{
		"location":        "Lagos, Nigeria",
		"processing_type": "NDVI",
		"start_date":      "2022-01-01",
		"end_date":        "2022-12-31",
	})
	server := generateServer(t, string(payload))
	defer server.Close()

	client := New(server.URL, "test-model")
	analysis, err := client.AnalyzePrompt(context.Background(), "show vegetation in Lagos for 2022")
	if err != nil {
		t.Fatalf("AnalyzePrompt failed: %v", err)
	}
	if analysis.Location != "Lagos, Nigeria" {
		t.Errorf("location = %q", analysis.Location)
	}
	if analysis.ProcessingType != "NDVI" {
		t.Errorf("processing_type = %q", analysis.ProcessingType)
	}
}

func TestAnalyzePromptNoLocation(t *testing.T) {
	server := generateServer(t, "{}")
	defer server.Close()

	client := New(server.URL, "test-model")
	if _, err := client.AnalyzePrompt(context.Background(), "hello"); err == nil {
		t.Error("expected error when analysis yields no location")
	}
}
