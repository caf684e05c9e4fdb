package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CardInput describes one card in a tool call.
type CardInput struct {
	Name     string `json:"name" jsonschema:"card name, unique within the deck"`
	Category string `json:"category" jsonschema:"card category (pokemon, trainer, energy)"`
	Count    int    `json:"count,omitempty" jsonschema:"number of copies (default 1)"`
	CardID   string `json:"card_id,omitempty" jsonschema:"optional external card identifier"`
	ImageURL string `json:"image_url,omitempty" jsonschema:"optional card image URL"`
}

// CardResult is one card of a returned snapshot.
type CardResult struct {
	Name     string `json:"name" jsonschema:"card name"`
	Category string `json:"category" jsonschema:"card category"`
	Count    int    `json:"count" jsonschema:"number of copies"`
	CardID   string `json:"card_id,omitempty" jsonschema:"external card identifier"`
	ImageURL string `json:"image_url,omitempty" jsonschema:"card image URL"`
}

// EntryResult is one entry of a returned difference.
type EntryResult struct {
	Type     string `json:"type" jsonschema:"entry kind (added, removed, changed)"`
	CardName string `json:"card_name" jsonschema:"card name"`
	Category string `json:"category" jsonschema:"card category"`
	Before   int    `json:"before_count,omitempty" jsonschema:"count before the change"`
	After    int    `json:"after_count,omitempty" jsonschema:"count after the change"`
}

// VersionResult is one committed version.
type VersionResult struct {
	Seq       int           `json:"seq" jsonschema:"1-based sequence number"`
	ID        string        `json:"id" jsonschema:"version identifier"`
	Message   string        `json:"message" jsonschema:"commit message"`
	CreatedAt string        `json:"created_at" jsonschema:"RFC3339 commit timestamp"`
	Changes   []EntryResult `json:"changes" jsonschema:"difference recorded by the version"`
	Summary   string        `json:"summary" jsonschema:"localized change summary"`
}

// DeckResult is the state of a deck after a tool call.
type DeckResult struct {
	ID           string       `json:"id" jsonschema:"deck identifier"`
	Name         string       `json:"name" jsonschema:"deck name"`
	Regulation   string       `json:"regulation" jsonschema:"deck regulation"`
	Memo         string       `json:"memo,omitempty" jsonschema:"free-form memo"`
	Cards        []CardResult `json:"cards" jsonschema:"working snapshot"`
	Total        int          `json:"total" jsonschema:"total card count"`
	VersionCount int          `json:"version_count" jsonschema:"number of committed versions"`
	HasChanges   bool         `json:"has_changes" jsonschema:"whether the working snapshot differs from the latest version"`
	Text         string       `json:"text" jsonschema:"localized deck listing"`
}

// DeckCreateInput represents the MCP tool input for creating a deck.
type DeckCreateInput struct {
	Name       string      `json:"name" jsonschema:"deck name"`
	Regulation string      `json:"regulation,omitempty" jsonschema:"regulation (standard, expanded, unlimited; default standard)"`
	Memo       string      `json:"memo,omitempty" jsonschema:"optional memo"`
	Cards      []CardInput `json:"cards,omitempty" jsonschema:"initial uncommitted cards"`
}

// DeckAddCardInput represents the MCP tool input for adding copies of a card.
type DeckAddCardInput struct {
	DeckID   string `json:"deck_id" jsonschema:"deck identifier"`
	Name     string `json:"name" jsonschema:"card name"`
	Category string `json:"category" jsonschema:"card category (pokemon, trainer, energy)"`
	Count    int    `json:"count,omitempty" jsonschema:"copies to add (default 1)"`
	CardID   string `json:"card_id,omitempty" jsonschema:"optional external card identifier"`
	ImageURL string `json:"image_url,omitempty" jsonschema:"optional card image URL"`
}

// DeckSetCountInput represents the MCP tool input for setting a card count.
type DeckSetCountInput struct {
	DeckID string `json:"deck_id" jsonschema:"deck identifier"`
	Name   string `json:"name" jsonschema:"card name"`
	Count  int    `json:"count" jsonschema:"new number of copies; 0 removes the card"`
}

// DeckRemoveCardInput represents the MCP tool input for removing a card.
type DeckRemoveCardInput struct {
	DeckID string `json:"deck_id" jsonschema:"deck identifier"`
	Name   string `json:"name" jsonschema:"card name"`
}

// DeckStatusInput represents the MCP tool input for inspecting pending changes.
type DeckStatusInput struct {
	DeckID string `json:"deck_id" jsonschema:"deck identifier"`
}

// DeckStatusResult lists the uncommitted changes of a deck.
type DeckStatusResult struct {
	DeckID     string        `json:"deck_id" jsonschema:"deck identifier"`
	HasChanges bool          `json:"has_changes" jsonschema:"whether anything is pending"`
	CanCommit  bool          `json:"can_commit" jsonschema:"whether a commit would be accepted"`
	Changes    []EntryResult `json:"changes" jsonschema:"pending difference against the latest version"`
	Violations []string      `json:"violations,omitempty" jsonschema:"localized deck rule violations"`
	Text       string        `json:"text" jsonschema:"localized status"`
}

// DeckCommitInput represents the MCP tool input for committing pending changes.
type DeckCommitInput struct {
	DeckID  string `json:"deck_id" jsonschema:"deck identifier"`
	Message string `json:"message" jsonschema:"commit message"`
}

// DeckHistoryInput represents the MCP tool input for listing versions.
type DeckHistoryInput struct {
	DeckID    string `json:"deck_id" jsonschema:"deck identifier"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over seq, message, card and created_at"`
	OrderBy   string `json:"order_by,omitempty" jsonschema:"seq or seq desc (default)"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"page size (default 50, max 200)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// DeckHistoryResult is one page of versions.
type DeckHistoryResult struct {
	DeckID        string          `json:"deck_id" jsonschema:"deck identifier"`
	Versions      []VersionResult `json:"versions" jsonschema:"versions in the requested order"`
	NextPageToken string          `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
	TotalCount    int             `json:"total_count" jsonschema:"versions matching the filter"`
	Text          string          `json:"text" jsonschema:"localized history"`
}

// DeckCheckoutInput represents the MCP tool input for reading a historical snapshot.
type DeckCheckoutInput struct {
	DeckID string `json:"deck_id" jsonschema:"deck identifier"`
	Seq    int    `json:"seq" jsonschema:"version sequence number; 0 is the empty deck"`
}

// DeckCheckoutResult is the snapshot at one version.
type DeckCheckoutResult struct {
	DeckID string       `json:"deck_id" jsonschema:"deck identifier"`
	Seq    int          `json:"seq" jsonschema:"version sequence number"`
	Cards  []CardResult `json:"cards" jsonschema:"snapshot at the version"`
	Total  int          `json:"total" jsonschema:"total card count"`
	Text   string       `json:"text" jsonschema:"localized listing"`
}

// DeckCompareInput represents the MCP tool input for comparing two versions.
type DeckCompareInput struct {
	DeckID string `json:"deck_id" jsonschema:"deck identifier"`
	From   int    `json:"from" jsonschema:"base version sequence number"`
	To     int    `json:"to" jsonschema:"target version sequence number"`
}

// DeckCompareResult is the difference between two versions.
type DeckCompareResult struct {
	DeckID  string        `json:"deck_id" jsonschema:"deck identifier"`
	From    int           `json:"from" jsonschema:"base version"`
	To      int           `json:"to" jsonschema:"target version"`
	Changes []EntryResult `json:"changes" jsonschema:"difference turning from into to"`
	Summary string        `json:"summary" jsonschema:"localized change summary"`
	Text    string        `json:"text" jsonschema:"localized difference"`
}

// DeckRevertInput represents the MCP tool input for restoring a version into
// the working snapshot.
type DeckRevertInput struct {
	DeckID string `json:"deck_id" jsonschema:"deck identifier"`
	Seq    int    `json:"seq" jsonschema:"version to restore; 0 empties the deck"`
}

// DeckImportInput represents the MCP tool input for importing a YAML deck list.
type DeckImportInput struct {
	Content string `json:"content" jsonschema:"YAML deck list with name, regulation, memo and cards"`
}

// DeckCreateTool defines the MCP tool schema for creating decks.
func DeckCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_create",
		Description: "Creates a deck with an optional set of uncommitted cards",
	}
}

// DeckAddCardTool defines the MCP tool schema for adding cards.
func DeckAddCardTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_add_card",
		Description: "Adds copies of a card to a deck's working snapshot, enforcing the 60 card and 4 copy limits",
	}
}

// DeckSetCountTool defines the MCP tool schema for changing a card count.
func DeckSetCountTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_set_count",
		Description: "Sets the number of copies of a card already in the deck; 0 removes it",
	}
}

// DeckRemoveCardTool defines the MCP tool schema for removing cards.
func DeckRemoveCardTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_remove_card",
		Description: "Removes every copy of a card from a deck's working snapshot",
	}
}

// DeckStatusTool defines the MCP tool schema for pending changes.
func DeckStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_status",
		Description: "Shows uncommitted changes and rule violations of a deck",
	}
}

// DeckCommitTool defines the MCP tool schema for committing.
func DeckCommitTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_commit",
		Description: "Records the pending changes of a deck as its next version",
	}
}

// DeckHistoryTool defines the MCP tool schema for listing versions.
func DeckHistoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_history",
		Description: "Lists a deck's versions with optional AIP-160 filtering and paging",
	}
}

// DeckCheckoutTool defines the MCP tool schema for historical snapshots.
func DeckCheckoutTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_checkout",
		Description: "Rebuilds the deck as it was at a version without changing it",
	}
}

// DeckCompareTool defines the MCP tool schema for comparing versions.
func DeckCompareTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_compare",
		Description: "Shows the net card changes between two versions of a deck",
	}
}

// DeckRevertTool defines the MCP tool schema for reverting.
func DeckRevertTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_revert",
		Description: "Replaces the working snapshot with a committed version; commit to record it",
	}
}

// DeckImportTool defines the MCP tool schema for importing deck lists.
func DeckImportTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deck_import",
		Description: "Creates a deck from a YAML deck list",
	}
}
