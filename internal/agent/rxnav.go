package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultRxNavBaseURL = "https://rxnav.nlm.nih.gov/REST"

var ErrInteractionLookup = errors.New("interaction lookup unavailable")

// InteractionGroup is the set of interaction descriptions one source
// reports for a drug.
type InteractionGroup struct {
	Source       string
	Descriptions []string
}

// RxNavClient resolves a drug name to an RxCUI and fetches its known
// interactions. It only enriches the model prompt; the rule engine never
// depends on it.
type RxNavClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRxNavClient(baseURL string, timeout time.Duration) *RxNavClient {
	if baseURL == "" {
		baseURL = DefaultRxNavBaseURL
	}
	return &RxNavClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type rxcuiResponse struct {
	IDGroup struct {
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

type interactionResponse struct {
	TypeGroups []struct {
		SourceName string `json:"sourceName"`
		Types      []struct {
			Pairs []struct {
				Severity    string `json:"severity"`
				Description string `json:"description"`
			} `json:"interactionPair"`
		} `json:"interactionType"`
	} `json:"interactionTypeGroup"`
}

func (c *RxNavClient) InteractionsFor(ctx context.Context, drug string) ([]InteractionGroup, error) {
	var ids rxcuiResponse
	u := c.baseURL + "/rxcui.json?" + url.Values{"name": {drug}}.Encode()
	if err := getJSON(ctx, c.httpClient, u, &ids); err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %w", ErrInteractionLookup, drug, err)
	}
	if len(ids.IDGroup.RxNormID) == 0 {
		return nil, fmt.Errorf("%w: no rxcui for %q", ErrInteractionLookup, drug)
	}

	var resp interactionResponse
	u = c.baseURL + "/interaction/interaction.json?" + url.Values{"rxcui": {ids.IDGroup.RxNormID[0]}}.Encode()
	if err := getJSON(ctx, c.httpClient, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: interactions for %q: %w", ErrInteractionLookup, drug, err)
	}

	groups := make([]InteractionGroup, 0, len(resp.TypeGroups))
	for _, tg := range resp.TypeGroups {
		g := InteractionGroup{Source: tg.SourceName}
		for _, it := range tg.Types {
			for _, p := range it.Pairs {
				if p.Description != "" {
					g.Descriptions = append(g.Descriptions, p.Description)
				}
			}
		}
		if len(g.Descriptions) > 0 {
			groups = append(groups, g)
		}
	}
	return groups, nil
}
