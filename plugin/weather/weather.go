// Package weather answers weather queries by searching the web through
// SerpAPI and extracting the most direct answer available.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultEndpoint = "https://serpapi.com/search"

// Config holds the SerpAPI client configuration.
type Config struct {
	APIKey string
	// Location biases the search results; defaults to Montevideo.
	Location string
	Endpoint string
	Timeout  time.Duration
}

// Service performs weather lookups against SerpAPI.
type Service struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewService creates a SerpAPI-backed weather service.
func NewService(config Config) *Service {
	if config.Location == "" {
		config.Location = "Montevideo, Uruguay"
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Service{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: slog.Default(),
	}
}

type searchResult struct {
	AnswerBox struct {
		Answer string `json:"answer"`
	} `json:"answer_box"`
	OrganicResults []struct {
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	KnowledgeGraph struct {
		Description string `json:"description"`
	} `json:"knowledge_graph"`
}

// Lookup searches the current weather for a location and returns a short
// Spanish sentence. date is appended to the query when present.
func (s *Service) Lookup(ctx context.Context, location string, date string) (string, error) {
	query := "clima en " + location
	if date != "" {
		query += " el " + date
	}

	raw, err := s.search(ctx, query)
	if err != nil {
		return "", err
	}
	return formatForecast(raw, location), nil
}

// search runs one SerpAPI query and extracts the most direct answer:
// answer box first, then the first organic snippet, then the knowledge
// graph description.
func (s *Service) search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("location", s.config.Location)
	params.Set("hl", "es")
	params.Set("api_key", s.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create search request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("search request failed", "query", query, "error", err)
		return "", errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.logger.Error("search returned error", "status", resp.StatusCode, "response", string(body))
		return "", errors.Errorf("search returned status %d", resp.StatusCode)
	}

	var result searchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "failed to decode search response")
	}

	if result.AnswerBox.Answer != "" {
		return result.AnswerBox.Answer, nil
	}
	if len(result.OrganicResults) > 0 && result.OrganicResults[0].Snippet != "" {
		return result.OrganicResults[0].Snippet, nil
	}
	if result.KnowledgeGraph.Description != "" {
		return result.KnowledgeGraph.Description, nil
	}

	s.logger.Warn("search response had no extractable weather data", "query", query)
	return "No encontré datos claros sobre el clima justo ahora.", nil
}

// formatForecast turns a raw search answer into a conversational
// sentence. Answers carrying a temperature reading usually look like
// "Montevideo nublado 18° · humedad: ...": the segment before the first
// separator holds the condition and the temperature.
func formatForecast(raw string, location string) string {
	if !strings.Contains(raw, "°") {
		return fmt.Sprintf("Según lo que encontré, en %s: %s", title(location), raw)
	}

	first := strings.TrimSpace(strings.Split(raw, "·")[0])
	fields := strings.Fields(first)
	if len(fields) < 3 {
		return fmt.Sprintf("Según lo que encontré, en %s: %s", title(location), raw)
	}

	temp := fields[len(fields)-1]
	condition := strings.ToLower(strings.Join(fields[2:len(fields)-1], " "))
	if condition == "" {
		return fmt.Sprintf("Según lo que encontré, en %s: %s", title(location), raw)
	}
	return fmt.Sprintf("En %s ahora está %s y hay unos %s.", title(location), condition, temp)
}

func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
