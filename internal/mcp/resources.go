package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/deckledger/internal/deck/render"
	"github.com/louisbranch/deckledger/internal/deck/service"
	"github.com/louisbranch/deckledger/internal/storage"
)

const versionsURIPrefix = "deck://"

// DeckVersionsResourceTemplate defines the MCP resource template for a deck's
// version log.
func DeckVersionsResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "deck_versions",
		Title:       "Deck Versions",
		Description: "Readable committed versions of a deck, oldest first. URI format: deck://{deck_id}/versions",
		MIMEType:    "application/json",
		URITemplate: "deck://{deck_id}/versions",
	}
}

// DeckVersionsPayload is the JSON body of a deck versions resource.
type DeckVersionsPayload struct {
	DeckID   string          `json:"deck_id"`
	Name     string          `json:"name"`
	Versions []VersionResult `json:"versions"`
}

// DeckVersionsResourceHandler returns every committed version of a deck.
func DeckVersionsResourceHandler(svc *service.Service, r *render.Renderer) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if req == nil || req.Params == nil {
			return nil, fmt.Errorf("resource request is required")
		}
		uri := req.Params.URI
		deckID, err := parseVersionsURI(uri)
		if err != nil {
			return nil, err
		}

		deck, err := svc.Get(ctx, deckID)
		if err != nil {
			return nil, toolError(r, "read deck versions", err)
		}
		payload := DeckVersionsPayload{DeckID: deck.ID, Name: deck.Name, Versions: []VersionResult{}}
		query := storage.VersionQuery{OrderBy: storage.OrderSeqAsc, PageSize: storage.MaxPageSize}
		for {
			page, err := svc.History(ctx, deckID, query)
			if err != nil {
				return nil, toolError(r, "read deck versions", err)
			}
			for _, v := range page.Versions {
				payload.Versions = append(payload.Versions, versionResult(r, v))
			}
			if page.NextPageToken == "" {
				break
			}
			query.PageToken = page.NextPageToken
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal deck versions: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// parseVersionsURI extracts the deck ID from deck://{deck_id}/versions.
func parseVersionsURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, versionsURIPrefix) {
		return "", fmt.Errorf("invalid URI scheme: expected %s{deck_id}/versions", versionsURIPrefix)
	}
	rest := strings.TrimPrefix(uri, versionsURIPrefix)
	deckID, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != "versions" {
		return "", fmt.Errorf("invalid URI path: expected %s{deck_id}/versions", versionsURIPrefix)
	}
	deckID, err := url.PathUnescape(deckID)
	if err != nil {
		return "", fmt.Errorf("invalid deck ID in URI: %w", err)
	}
	if strings.TrimSpace(deckID) == "" {
		return "", fmt.Errorf("deck ID is required in URI")
	}
	return deckID, nil
}
