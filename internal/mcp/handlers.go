package mcp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
	"github.com/louisbranch/deckledger/internal/deck/render"
	"github.com/louisbranch/deckledger/internal/deck/service"
	"github.com/louisbranch/deckledger/internal/platform/errors/i18n"
	"github.com/louisbranch/deckledger/internal/storage"
)

var errDeckIDRequired = errors.New("deck_id is required")

// DeckCreateHandler executes a deck create request.
func DeckCreateHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckCreateInput, DeckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckCreateInput) (*mcp.CallToolResult, DeckResult, error) {
		cards := make([]card.Card, 0, len(input.Cards))
		for _, c := range input.Cards {
			cards = append(cards, cardFromInput(c))
		}
		deck, err := svc.Create(ctx, service.CreateInput{
			Name:         input.Name,
			Regulation:   input.Regulation,
			Memo:         input.Memo,
			InitialCards: card.NewSnapshot(cards...),
		})
		if err != nil {
			return nil, DeckResult{}, toolError(r, "deck create", err)
		}
		return nil, deckResult(r, deck), nil
	}
}

// DeckAddCardHandler executes an add card request.
func DeckAddCardHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckAddCardInput, DeckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckAddCardInput) (*mcp.CallToolResult, DeckResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckResult{}, errDeckIDRequired
		}
		c := cardFromInput(CardInput{
			Name:     input.Name,
			Category: input.Category,
			CardID:   input.CardID,
			ImageURL: input.ImageURL,
		})
		deck, err := svc.AddCard(ctx, input.DeckID, service.AddCardInput{
			Name:     c.Name,
			Category: c.Category,
			Count:    input.Count,
			CardID:   c.ID,
			ImageURL: c.ImageURL,
		})
		if err != nil {
			return nil, DeckResult{}, toolError(r, "deck add card", err)
		}
		return nil, deckResult(r, deck), nil
	}
}

// DeckSetCountHandler executes a set count request.
func DeckSetCountHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckSetCountInput, DeckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckSetCountInput) (*mcp.CallToolResult, DeckResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckResult{}, errDeckIDRequired
		}
		deck, err := svc.SetCount(ctx, input.DeckID, input.Name, input.Count)
		if err != nil {
			return nil, DeckResult{}, toolError(r, "deck set count", err)
		}
		return nil, deckResult(r, deck), nil
	}
}

// DeckRemoveCardHandler executes a remove card request.
func DeckRemoveCardHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckRemoveCardInput, DeckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckRemoveCardInput) (*mcp.CallToolResult, DeckResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckResult{}, errDeckIDRequired
		}
		deck, err := svc.RemoveCard(ctx, input.DeckID, input.Name)
		if err != nil {
			return nil, DeckResult{}, toolError(r, "deck remove card", err)
		}
		return nil, deckResult(r, deck), nil
	}
}

// DeckStatusHandler reports pending changes.
func DeckStatusHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckStatusInput, DeckStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckStatusInput) (*mcp.CallToolResult, DeckStatusResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckStatusResult{}, errDeckIDRequired
		}
		status, err := svc.Status(ctx, input.DeckID)
		if err != nil {
			return nil, DeckStatusResult{}, toolError(r, "deck status", err)
		}
		catalog := i18n.GetCatalog(r.Locale())
		violations := make([]string, 0, len(status.Violations))
		for _, v := range status.Violations {
			violations = append(violations, catalog.Format(v.Code, v.Metadata))
		}
		text := r.Status(status.Pending)
		if len(violations) > 0 {
			text += "\n" + strings.Join(violations, "\n")
		}
		return nil, DeckStatusResult{
			DeckID:     status.Deck.ID,
			HasChanges: status.HasChanges,
			CanCommit:  status.CanCommit(),
			Changes:    entryResults(status.Pending),
			Violations: violations,
			Text:       text,
		}, nil
	}
}

// DeckCommitHandler records pending changes as a version.
func DeckCommitHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckCommitInput, VersionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckCommitInput) (*mcp.CallToolResult, VersionResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, VersionResult{}, errDeckIDRequired
		}
		version, err := svc.Commit(ctx, input.DeckID, input.Message)
		if err != nil {
			return nil, VersionResult{}, toolError(r, "deck commit", err)
		}
		return nil, versionResult(r, version), nil
	}
}

// DeckHistoryHandler lists versions.
func DeckHistoryHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckHistoryInput, DeckHistoryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckHistoryInput) (*mcp.CallToolResult, DeckHistoryResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckHistoryResult{}, errDeckIDRequired
		}
		if _, err := svc.Get(ctx, input.DeckID); err != nil {
			return nil, DeckHistoryResult{}, toolError(r, "deck history", err)
		}
		page, err := svc.History(ctx, input.DeckID, storage.VersionQuery{
			Filter:    input.Filter,
			OrderBy:   input.OrderBy,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, DeckHistoryResult{}, toolError(r, "deck history", err)
		}
		return nil, historyResult(r, input.DeckID, page), nil
	}
}

// DeckCheckoutHandler rebuilds a historical snapshot.
func DeckCheckoutHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckCheckoutInput, DeckCheckoutResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckCheckoutInput) (*mcp.CallToolResult, DeckCheckoutResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckCheckoutResult{}, errDeckIDRequired
		}
		snapshot, err := svc.Checkout(ctx, input.DeckID, input.Seq)
		if err != nil {
			return nil, DeckCheckoutResult{}, toolError(r, "deck checkout", err)
		}
		return nil, DeckCheckoutResult{
			DeckID: input.DeckID,
			Seq:    input.Seq,
			Cards:  cardResults(snapshot),
			Total:  snapshot.Total(),
			Text:   r.Snapshot(snapshot),
		}, nil
	}
}

// DeckCompareHandler diffs two versions.
func DeckCompareHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckCompareInput, DeckCompareResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckCompareInput) (*mcp.CallToolResult, DeckCompareResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckCompareResult{}, errDeckIDRequired
		}
		d, err := svc.Compare(ctx, input.DeckID, input.From, input.To)
		if err != nil {
			return nil, DeckCompareResult{}, toolError(r, "deck compare", err)
		}
		return nil, DeckCompareResult{
			DeckID:  input.DeckID,
			From:    input.From,
			To:      input.To,
			Changes: entryResults(d),
			Summary: r.Summary(d),
			Text:    r.Diff(d),
		}, nil
	}
}

// DeckRevertHandler restores a version into the working snapshot.
func DeckRevertHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckRevertInput, DeckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckRevertInput) (*mcp.CallToolResult, DeckResult, error) {
		if strings.TrimSpace(input.DeckID) == "" {
			return nil, DeckResult{}, errDeckIDRequired
		}
		deck, err := svc.Revert(ctx, input.DeckID, input.Seq)
		if err != nil {
			return nil, DeckResult{}, toolError(r, "deck revert", err)
		}
		return nil, deckResult(r, deck), nil
	}
}

// DeckImportHandler creates a deck from a YAML deck list.
func DeckImportHandler(svc *service.Service, r *render.Renderer) mcp.ToolHandlerFor[DeckImportInput, DeckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeckImportInput) (*mcp.CallToolResult, DeckResult, error) {
		if strings.TrimSpace(input.Content) == "" {
			return nil, DeckResult{}, fmt.Errorf("content is required")
		}
		deck, err := svc.Import(ctx, []byte(input.Content))
		if err != nil {
			return nil, DeckResult{}, toolError(r, "deck import", err)
		}
		return nil, deckResult(r, deck), nil
	}
}

// toolError localizes domain errors for the tool caller. The code stays in
// the message so clients can branch on it.
func toolError(r *render.Renderer, op string, err error) error {
	if message, ok := i18n.Localize(r.Locale(), err); ok {
		return fmt.Errorf("%s failed: %s", op, message)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func cardFromInput(in CardInput) card.Card {
	count := in.Count
	if count == 0 {
		count = 1
	}
	return card.Card{
		Name:     strings.TrimSpace(in.Name),
		ID:       strings.TrimSpace(in.CardID),
		Category: card.Category(strings.ToLower(strings.TrimSpace(in.Category))),
		Count:    count,
		ImageURL: strings.TrimSpace(in.ImageURL),
	}
}

func cardResults(s card.Snapshot) []CardResult {
	cards := s.Cards()
	out := make([]CardResult, 0, len(cards))
	for _, c := range cards {
		out = append(out, CardResult{
			Name:     c.Name,
			Category: string(c.Category),
			Count:    c.Count,
			CardID:   c.ID,
			ImageURL: c.ImageURL,
		})
	}
	return out
}

func entryResults(d diff.Diff) []EntryResult {
	out := make([]EntryResult, 0, len(d))
	for _, e := range d {
		ref := e.Key()
		result := EntryResult{
			Type:     string(e.Kind()),
			CardName: ref.Name,
			Category: string(ref.Category),
		}
		switch entry := e.(type) {
		case diff.Added:
			result.After = entry.After
		case diff.Removed:
			result.Before = entry.Before
		case diff.Changed:
			result.Before = entry.Before
			result.After = entry.After
		}
		out = append(out, result)
	}
	return out
}

func deckResult(r *render.Renderer, deck service.Deck) DeckResult {
	return DeckResult{
		ID:           deck.ID,
		Name:         deck.Name,
		Regulation:   string(deck.Regulation),
		Memo:         deck.Memo,
		Cards:        cardResults(deck.Current),
		Total:        deck.Current.Total(),
		VersionCount: deck.VersionCount,
		HasChanges:   diff.Has(deck.Committed, deck.Current),
		Text:         r.Snapshot(deck.Current),
	}
}

func versionResult(r *render.Renderer, v history.Version) VersionResult {
	return VersionResult{
		Seq:       v.Seq,
		ID:        v.ID,
		Message:   v.Message,
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
		Changes:   entryResults(v.Diff),
		Summary:   r.Summary(v.Diff),
	}
}

func historyResult(r *render.Renderer, deckID string, page storage.VersionPage) DeckHistoryResult {
	versions := make([]VersionResult, 0, len(page.Versions))
	for _, v := range page.Versions {
		versions = append(versions, versionResult(r, v))
	}
	// The text reads newest first regardless of the requested order.
	ascending := slices.Clone(page.Versions)
	if len(ascending) > 1 && ascending[0].Seq > ascending[len(ascending)-1].Seq {
		slices.Reverse(ascending)
	}
	return DeckHistoryResult{
		DeckID:        deckID,
		Versions:      versions,
		NextPageToken: page.NextPageToken,
		TotalCount:    page.TotalCount,
		Text:          r.History(ascending),
	}
}
