// ABOUTME: Handlers for assets, liabilities and the portfolio summary
// ABOUTME: Every row is owned by the verified caller; monetary values are integer cents

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oakledger/oakledger/internal/store"
)

// EntryRequest is the JSON request body for creating an asset or liability.
type EntryRequest struct {
	Category   string   `json:"category"`
	Title      string   `json:"title"`
	ValueCents int64    `json:"value_cents"`
	DocPaths   []string `json:"doc_paths,omitempty"`
}

// PortfolioResponse is the JSON response for GET /portfolio.
type PortfolioResponse struct {
	AssetsCents      int64 `json:"assets_cents"`
	LiabilitiesCents int64 `json:"liabilities_cents"`
	NetWorthCents    int64 `json:"net_worth_cents"`
	AssetCount       int   `json:"asset_count"`
	LiabilityCount   int   `json:"liability_count"`
}

// parseEntryRequest parses and validates an EntryRequest from the given reader.
func parseEntryRequest(r io.Reader) (*EntryRequest, error) {
	var req EntryRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if req.Category == "" {
		return nil, errors.New("category is required")
	}
	if req.Title == "" {
		return nil, errors.New("title is required")
	}
	if req.ValueCents < 0 {
		return nil, errors.New("value_cents must not be negative")
	}
	return &req, nil
}

// handleListAssets handles GET /assets.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	assets, err := s.ledger(session).ListAssets(r.Context(), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if assets == nil {
		assets = []store.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// handleCreateAsset handles POST /assets.
func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	req, err := parseEntryRequest(r.Body)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset := &store.Asset{
		AssetID:    uuid.New().String(),
		Username:   p.Username,
		Category:   req.Category,
		Title:      req.Title,
		ValueCents: req.ValueCents,
		CreatedAt:  time.Now().UTC(),
		DocPaths:   req.DocPaths,
	}
	if err := s.ledger(session).PutAsset(r.Context(), asset); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// handleGetAsset handles GET /assets/{id}.
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	asset, err := s.ledger(session).GetAsset(r.Context(), r.PathValue("id"), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// handleUpdateAsset handles PUT /assets/{id}. Identity and creation time
// are immutable; only the descriptive fields are replaced.
func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	req, err := parseEntryRequest(r.Body)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ledger := s.ledger(session)
	asset, err := ledger.GetAsset(r.Context(), r.PathValue("id"), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	asset.Category = req.Category
	asset.Title = req.Title
	asset.ValueCents = req.ValueCents
	asset.DocPaths = req.DocPaths
	if err := ledger.PutAsset(r.Context(), asset); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// handleDeleteAsset handles DELETE /assets/{id}.
func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	if err := s.ledger(session).DeleteAsset(r.Context(), r.PathValue("id"), p.Username); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListLiabilities handles GET /liabilities.
func (s *Server) handleListLiabilities(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	liabilities, err := s.ledger(session).ListLiabilities(r.Context(), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if liabilities == nil {
		liabilities = []store.Liability{}
	}
	writeJSON(w, http.StatusOK, liabilities)
}

// handleCreateLiability handles POST /liabilities.
func (s *Server) handleCreateLiability(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	req, err := parseEntryRequest(r.Body)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	liability := &store.Liability{
		LiabilityID: uuid.New().String(),
		Username:    p.Username,
		Category:    req.Category,
		Title:       req.Title,
		ValueCents:  req.ValueCents,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.ledger(session).PutLiability(r.Context(), liability); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, liability)
}

// handleGetLiability handles GET /liabilities/{id}.
func (s *Server) handleGetLiability(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	liability, err := s.ledger(session).GetLiability(r.Context(), r.PathValue("id"), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, liability)
}

// handleUpdateLiability handles PUT /liabilities/{id}.
func (s *Server) handleUpdateLiability(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	req, err := parseEntryRequest(r.Body)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ledger := s.ledger(session)
	liability, err := ledger.GetLiability(r.Context(), r.PathValue("id"), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	liability.Category = req.Category
	liability.Title = req.Title
	liability.ValueCents = req.ValueCents
	if err := ledger.PutLiability(r.Context(), liability); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, liability)
}

// handleDeleteLiability handles DELETE /liabilities/{id}.
func (s *Server) handleDeleteLiability(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	if err := s.ledger(session).DeleteLiability(r.Context(), r.PathValue("id"), p.Username); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handlePortfolio handles GET /portfolio, summing the caller's ledger.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}
	ledger := s.ledger(session)

	assets, err := ledger.ListAssets(r.Context(), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	liabilities, err := ledger.ListLiabilities(r.Context(), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var resp PortfolioResponse
	for _, a := range assets {
		resp.AssetsCents += a.ValueCents
	}
	for _, l := range liabilities {
		resp.LiabilitiesCents += l.ValueCents
	}
	resp.NetWorthCents = resp.AssetsCents - resp.LiabilitiesCents
	resp.AssetCount = len(assets)
	resp.LiabilityCount = len(liabilities)

	writeJSON(w, http.StatusOK, resp)
}
