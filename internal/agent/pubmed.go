package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPubMedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// maxLiteratureBytes bounds the raw efetch payload handed to prompts.
	maxLiteratureBytes = 2000
)

var ErrSearchUnavailable = errors.New("literature search unavailable")

// PubMedClient searches PubMed through the NCBI E-utilities: esearch for
// article ids, then efetch for the raw article XML.
type PubMedClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPubMedClient(baseURL string, timeout time.Duration) *PubMedClient {
	if baseURL == "" {
		baseURL = DefaultPubMedBaseURL
	}
	return &PubMedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Search returns the first maxLiteratureBytes of the efetch XML for the top
// maxResults articles. Transport errors, non-2xx responses, parse failures
// and empty result sets all wrap ErrSearchUnavailable.
func (c *PubMedClient) Search(ctx context.Context, query string, maxResults int) (string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {strconv.Itoa(maxResults)},
		"retmode": {"json"},
	}

	var search esearchResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/esearch.fcgi?"+params.Encode(), &search); err != nil {
		return "", fmt.Errorf("%w: esearch: %w", ErrSearchUnavailable, err)
	}
	if len(search.Result.IDList) == 0 {
		return "", fmt.Errorf("%w: no articles for %q", ErrSearchUnavailable, query)
	}

	params = url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(search.Result.IDList, ",")},
		"retmode": {"xml"},
	}
	resp, err := get(ctx, c.httpClient, c.baseURL+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("%w: efetch: %w", ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLiteratureBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read efetch body: %w", ErrSearchUnavailable, err)
	}
	text := strings.TrimSpace(strings.ToValidUTF8(string(body), ""))
	if text == "" {
		return "", fmt.Errorf("%w: empty efetch body", ErrSearchUnavailable)
	}
	return text, nil
}
