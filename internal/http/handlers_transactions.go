package http

import (
	"net/http"

	"contas/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := parsePositive(q, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	perPage, err := parsePositive(q, "per_page", services.DefaultPerPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Transactions.List(r.Context(), ownerID(r), services.ListParams{
		Filter: filter, Page: page, PerPage: perPage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Transactions.Create(r.Context(), ownerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+t.ID).
		Body(t).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Transactions.Get(r.Context(), ownerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Transactions.Update(r.Context(), ownerID(r), pathID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.Delete(r.Context(), ownerID(r), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplaceReceipt(w http.ResponseWriter, r *http.Request) {
	f, err := formFile(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	v, err := s.deps.Transactions.ReplaceReceipt(r.Context(), ownerID(r), pathID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRemoveReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.RemoveReceipt(r.Context(), ownerID(r), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReceiptURL(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Transactions.ReceiptURL(r.Context(), ownerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":        u,
		"expires_in": int(s.opts.ReceiptTTL.Seconds()),
	})
}
